//go:build opencl

// Package opencl is the OpenCL backend. It is only built with the opencl tag
// and links against the system ICD loader.
package opencl

/*
#cgo CFLAGS: -DCL_TARGET_OPENCL_VERSION=120 -DCL_USE_DEPRECATED_OPENCL_1_2_APIS
#cgo !darwin LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/vuvietnguyenit/dag-bench/device"
)

const Available = true

func init() {
	device.Register("opencl", Backend{})
}

type Backend struct{}

func platformIDs() ([]C.cl_platform_id, error) {
	var n C.cl_uint
	if rc := C.clGetPlatformIDs(0, nil, &n); rc != C.CL_SUCCESS {
		if int(rc) == clPlatformNotFoundKHR {
			return nil, nil
		}
		return nil, clError("clGetPlatformIDs", rc)
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]C.cl_platform_id, n)
	if rc := C.clGetPlatformIDs(n, &ids[0], nil); rc != C.CL_SUCCESS {
		return nil, clError("clGetPlatformIDs", rc)
	}
	return ids, nil
}

func deviceIDs(p C.cl_platform_id) ([]C.cl_device_id, error) {
	var n C.cl_uint
	rc := C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_GPU, 0, nil, &n)
	if rc == C.CL_DEVICE_NOT_FOUND || n == 0 {
		return nil, nil
	}
	if rc != C.CL_SUCCESS {
		return nil, clError("clGetDeviceIDs", rc)
	}
	ids := make([]C.cl_device_id, n)
	if rc := C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_GPU, n, &ids[0], nil); rc != C.CL_SUCCESS {
		return nil, clError("clGetDeviceIDs", rc)
	}
	return ids, nil
}

func platformString(p C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	if rc := C.clGetPlatformInfo(p, param, 0, nil, &size); rc != C.CL_SUCCESS {
		return "", clError("clGetPlatformInfo", rc)
	}
	if size == 0 {
		return "", nil
	}
	buf := C.malloc(size)
	defer C.free(buf)
	if rc := C.clGetPlatformInfo(p, param, size, buf, nil); rc != C.CL_SUCCESS {
		return "", clError("clGetPlatformInfo", rc)
	}
	return C.GoString((*C.char)(buf)), nil
}

func deviceString(d C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	if rc := C.clGetDeviceInfo(d, param, 0, nil, &size); rc != C.CL_SUCCESS {
		return "", clError("clGetDeviceInfo", rc)
	}
	if size == 0 {
		return "", nil
	}
	buf := C.malloc(size)
	defer C.free(buf)
	if rc := C.clGetDeviceInfo(d, param, size, buf, nil); rc != C.CL_SUCCESS {
		return "", clError("clGetDeviceInfo", rc)
	}
	return strings.TrimSpace(C.GoString((*C.char)(buf))), nil
}

func deviceUlong(d C.cl_device_id, param C.cl_device_info) (uint64, error) {
	var v C.cl_ulong
	if rc := C.clGetDeviceInfo(d, param, C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v), nil); rc != C.CL_SUCCESS {
		return 0, clError("clGetDeviceInfo", rc)
	}
	return uint64(v), nil
}

func deviceUint(d C.cl_device_id, param C.cl_device_info) (uint32, error) {
	var v C.cl_uint
	if rc := C.clGetDeviceInfo(d, param, C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v), nil); rc != C.CL_SUCCESS {
		return 0, clError("clGetDeviceInfo", rc)
	}
	return uint32(v), nil
}

func describe(platformName string, d C.cl_device_id) (device.Info, error) {
	name, err := deviceString(d, C.CL_DEVICE_NAME)
	if err != nil {
		return device.Info{}, err
	}
	vendor, err := deviceString(d, C.CL_DEVICE_VENDOR)
	if err != nil {
		return device.Info{}, err
	}
	global, err := deviceUlong(d, C.CL_DEVICE_GLOBAL_MEM_SIZE)
	if err != nil {
		return device.Info{}, err
	}
	maxAlloc, err := deviceUlong(d, C.CL_DEVICE_MAX_MEM_ALLOC_SIZE)
	if err != nil {
		return device.Info{}, err
	}
	cu, err := deviceUint(d, C.CL_DEVICE_MAX_COMPUTE_UNITS)
	if err != nil {
		return device.Info{}, err
	}
	return device.Info{
		Name:         name,
		Platform:     platformName,
		Vendor:       vendor,
		GlobalMem:    global,
		MaxAlloc:     maxAlloc,
		ComputeUnits: int(cu),
	}, nil
}

func (Backend) Platforms() ([]device.Platform, error) {
	pids, err := platformIDs()
	if err != nil {
		return nil, err
	}
	platforms := make([]device.Platform, 0, len(pids))
	for i, p := range pids {
		name, err := platformString(p, C.CL_PLATFORM_NAME)
		if err != nil {
			return nil, err
		}
		dids, err := deviceIDs(p)
		if err != nil {
			return nil, err
		}
		pl := device.Platform{Index: i, Name: name}
		for _, d := range dids {
			info, err := describe(name, d)
			if err != nil {
				return nil, err
			}
			pl.Devices = append(pl.Devices, info)
		}
		platforms = append(platforms, pl)
	}
	return platforms, nil
}

func (Backend) Open(platform, dev int) (device.Device, error) {
	pids, err := platformIDs()
	if err != nil {
		return nil, err
	}
	if platform < 0 || platform >= len(pids) {
		return nil, fmt.Errorf("opencl platform %d: %w", platform, device.ErrNotFound)
	}
	p := pids[platform]
	dids, err := deviceIDs(p)
	if err != nil {
		return nil, err
	}
	if dev < 0 || dev >= len(dids) {
		return nil, fmt.Errorf("opencl device %d on platform %d: %w", dev, platform, device.ErrNotFound)
	}
	d := dids[dev]

	pname, err := platformString(p, C.CL_PLATFORM_NAME)
	if err != nil {
		return nil, err
	}
	info, err := describe(pname, d)
	if err != nil {
		return nil, err
	}

	props := []C.cl_context_properties{
		C.CL_CONTEXT_PLATFORM,
		C.cl_context_properties(uintptr(unsafe.Pointer(p))),
		0,
	}
	var rc C.cl_int
	ctx := C.clCreateContext(&props[0], 1, &d, nil, nil, &rc)
	if rc != C.CL_SUCCESS {
		return nil, clError("clCreateContext", rc)
	}
	queue := C.clCreateCommandQueue(ctx, d, C.CL_QUEUE_PROFILING_ENABLE, &rc)
	if rc != C.CL_SUCCESS {
		C.clReleaseContext(ctx)
		return nil, clError("clCreateCommandQueue", rc)
	}
	return &Device{id: d, ctx: ctx, queue: queue, info: info}, nil
}

type Device struct {
	id    C.cl_device_id
	ctx   C.cl_context
	queue C.cl_command_queue
	info  device.Info
}

func (d *Device) Info() device.Info { return d.info }

func (d *Device) Alloc(size uint64, flags device.MemFlags) (device.Buffer, error) {
	var f C.cl_mem_flags = C.CL_MEM_READ_ONLY
	if flags == device.ReadWrite {
		f = C.CL_MEM_READ_WRITE
	}
	var rc C.cl_int
	mem := C.clCreateBuffer(d.ctx, f, C.size_t(size), nil, &rc)
	if rc != C.CL_SUCCESS {
		return nil, clError("clCreateBuffer", rc)
	}
	return &Buffer{mem: mem, size: size}, nil
}

func (d *Device) Write(b device.Buffer, offset uint64, src []byte) error {
	cb, ok := b.(*Buffer)
	if !ok {
		return &device.Error{Op: "clEnqueueWriteBuffer", Code: int(C.CL_INVALID_MEM_OBJECT), Err: device.ErrInvalid}
	}
	if len(src) == 0 {
		return nil
	}
	rc := C.clEnqueueWriteBuffer(d.queue, cb.mem, C.CL_TRUE, C.size_t(offset), C.size_t(len(src)),
		unsafe.Pointer(&src[0]), 0, nil, nil)
	if rc != C.CL_SUCCESS {
		err := clError("clEnqueueWriteBuffer", rc)
		if !device.IsOutOfMemory(err) {
			err.Err = device.ErrTransfer
		}
		return err
	}
	return nil
}

func (d *Device) Read(b device.Buffer, offset uint64, dst []byte) error {
	cb, ok := b.(*Buffer)
	if !ok {
		return &device.Error{Op: "clEnqueueReadBuffer", Code: int(C.CL_INVALID_MEM_OBJECT), Err: device.ErrInvalid}
	}
	if len(dst) == 0 {
		return nil
	}
	rc := C.clEnqueueReadBuffer(d.queue, cb.mem, C.CL_TRUE, C.size_t(offset), C.size_t(len(dst)),
		unsafe.Pointer(&dst[0]), 0, nil, nil)
	if rc != C.CL_SUCCESS {
		err := clError("clEnqueueReadBuffer", rc)
		if !device.IsOutOfMemory(err) {
			err.Err = device.ErrTransfer
		}
		return err
	}
	return nil
}

func (d *Device) Compile(source, entry string) (device.Kernel, error) {
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	length := C.size_t(len(source))

	var rc C.cl_int
	prog := C.clCreateProgramWithSource(d.ctx, 1, &csrc, &length, &rc)
	if rc != C.CL_SUCCESS {
		return nil, clError("clCreateProgramWithSource", rc)
	}
	opts := C.CString("")
	defer C.free(unsafe.Pointer(opts))
	id := d.id
	if rc := C.clBuildProgram(prog, 1, &id, opts, nil, nil); rc != C.CL_SUCCESS {
		log := d.buildLog(prog)
		C.clReleaseProgram(prog)
		return nil, &device.CompileError{Entry: entry, Log: log}
	}

	cname := C.CString(entry)
	defer C.free(unsafe.Pointer(cname))
	k := C.clCreateKernel(prog, cname, &rc)
	if rc != C.CL_SUCCESS {
		C.clReleaseProgram(prog)
		return nil, clError("clCreateKernel", rc)
	}
	return &Kernel{dev: d, prog: prog, k: k}, nil
}

func (d *Device) buildLog(prog C.cl_program) string {
	var size C.size_t
	if rc := C.clGetProgramBuildInfo(prog, d.id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); rc != C.CL_SUCCESS || size == 0 {
		return fmt.Sprintf("(no build log, code %d)", int(rc))
	}
	buf := C.malloc(size)
	defer C.free(buf)
	C.clGetProgramBuildInfo(prog, d.id, C.CL_PROGRAM_BUILD_LOG, size, buf, nil)
	return C.GoString((*C.char)(buf))
}

func (d *Device) Close() error {
	C.clFinish(d.queue)
	if rc := C.clReleaseCommandQueue(d.queue); rc != C.CL_SUCCESS {
		return clError("clReleaseCommandQueue", rc)
	}
	if rc := C.clReleaseContext(d.ctx); rc != C.CL_SUCCESS {
		return clError("clReleaseContext", rc)
	}
	return nil
}

type Buffer struct {
	mem  C.cl_mem
	size uint64
}

func (b *Buffer) Handle() uintptr { return uintptr(unsafe.Pointer(b.mem)) }
func (b *Buffer) Size() uint64    { return b.size }

func (b *Buffer) Release() error {
	if rc := C.clReleaseMemObject(b.mem); rc != C.CL_SUCCESS {
		return clError("clReleaseMemObject", rc)
	}
	return nil
}

type Kernel struct {
	dev  *Device
	prog C.cl_program
	k    C.cl_kernel
}

func (k *Kernel) SetArg(index int, v any) error {
	var rc C.cl_int
	switch a := v.(type) {
	case uint32:
		x := C.cl_uint(a)
		rc = C.clSetKernelArg(k.k, C.cl_uint(index), C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case uint64:
		x := C.cl_ulong(a)
		rc = C.clSetKernelArg(k.k, C.cl_uint(index), C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case *Buffer:
		mem := a.mem
		rc = C.clSetKernelArg(k.k, C.cl_uint(index), C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	default:
		return &device.Error{Op: "clSetKernelArg", Code: int(C.CL_INVALID_ARG_VALUE), Err: fmt.Errorf("%w: unsupported type %T", device.ErrInvalid, v)}
	}
	if rc != C.CL_SUCCESS {
		return clError("clSetKernelArg", rc)
	}
	return nil
}

func (k *Kernel) Launch(global, local int) (device.Profile, error) {
	g := C.size_t(global)
	l := C.size_t(local)
	var ev C.cl_event
	if rc := C.clEnqueueNDRangeKernel(k.dev.queue, k.k, 1, nil, &g, &l, 0, nil, &ev); rc != C.CL_SUCCESS {
		return device.Profile{}, clError("clEnqueueNDRangeKernel", rc)
	}
	defer C.clReleaseEvent(ev)
	if rc := C.clWaitForEvents(1, &ev); rc != C.CL_SUCCESS {
		return device.Profile{}, clError("clWaitForEvents", rc)
	}

	var start, end C.cl_ulong
	if rc := C.clGetEventProfilingInfo(ev, C.CL_PROFILING_COMMAND_START, C.size_t(unsafe.Sizeof(start)), unsafe.Pointer(&start), nil); rc != C.CL_SUCCESS {
		return device.Profile{}, clError("clGetEventProfilingInfo", rc)
	}
	if rc := C.clGetEventProfilingInfo(ev, C.CL_PROFILING_COMMAND_END, C.size_t(unsafe.Sizeof(end)), unsafe.Pointer(&end), nil); rc != C.CL_SUCCESS {
		return device.Profile{}, clError("clGetEventProfilingInfo", rc)
	}
	return device.Profile{Start: uint64(start), End: uint64(end)}, nil
}

func (k *Kernel) Release() error {
	if rc := C.clReleaseKernel(k.k); rc != C.CL_SUCCESS {
		return clError("clReleaseKernel", rc)
	}
	if rc := C.clReleaseProgram(k.prog); rc != C.CL_SUCCESS {
		return clError("clReleaseProgram", rc)
	}
	return nil
}

func clError(op string, rc C.cl_int) *device.Error {
	code := int(rc)
	return &device.Error{Op: op, Code: code, Err: classify(code)}
}
