//go:build gpu

package backend

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static const char* gravsim_cl_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE_TYPE: return "CL_INVALID_DEVICE_TYPE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_command_queue gravsim_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}
*/
import "C"

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/cwbudde/gravsim/internal/body"
	"github.com/cwbudde/gravsim/internal/vec2"
)

// KernelVariant selects among the three kernel source bodies, matching
// the naive/tiled/tiled-padded trio described for the GPU back end:
// naive re-reads global memory for every source body; tiled stages a
// work-group's worth of bodies into local memory once per tile; tiled
// padded additionally assumes the buffers are already padded to a
// work-group multiple, removing the bounds check.
type KernelVariant int

const (
	KernelNaive KernelVariant = iota
	KernelTiled
	KernelTiledPadded
)

// defaultWorkGroupSize matches the typical value called out for this
// kernel family.
const defaultWorkGroupSize = 128

const kernelSourceNaive = `
__kernel void forces(
    __global const float *x,
    __global const float *y,
    __global const float *mass,
    __global float *forceX,
    __global float *forceY,
    const int count)
{
    const float G = 6.6732e-11f;
    int i = get_global_id(0);
    if (i >= count) return;

    float xi = x[i];
    float yi = y[i];
    float mi = mass[i];
    float fx = 0.0f, fy = 0.0f;

    for (int j = 0; j < count; j++) {
        if (j == i) continue;
        float dx = x[j] - xi;
        float dy = y[j] - yi;
        float len2 = dx * dx + dy * dy;
        float notzero = len2 != 0.0f ? 1.0f : 0.0f;
        len2 += (1.0f - notzero);
        float invLen = notzero * native_rsqrt(len2);
        float Fg = (G * mi) * (mass[j] * invLen * invLen);
        fx += dx * invLen * Fg;
        fy += dy * invLen * Fg;
    }
    forceX[i] = fx;
    forceY[i] = fy;
}
`

const kernelSourceTiled = `
__kernel void forces(
    __global const float *x,
    __global const float *y,
    __global const float *mass,
    __global float *forceX,
    __global float *forceY,
    const int count,
    __local float *tileX,
    __local float *tileY,
    __local float *tileM)
{
    const float G = 6.6732e-11f;
    int i = get_global_id(0);
    int lid = get_local_id(0);
    int tileSize = get_local_size(0);

    float xi = i < count ? x[i] : 0.0f;
    float yi = i < count ? y[i] : 0.0f;
    float mi = i < count ? mass[i] : 0.0f;
    float fx = 0.0f, fy = 0.0f;

    for (int base = 0; base < count; base += tileSize) {
        int src = base + lid;
        tileX[lid] = src < count ? x[src] : 0.0f;
        tileY[lid] = src < count ? y[src] : 0.0f;
        tileM[lid] = src < count ? mass[src] : 0.0f;
        barrier(CLK_LOCAL_MEM_FENCE);

        int limit = min(tileSize, count - base);
        for (int k = 0; k < limit; k++) {
            int j = base + k;
            if (j == i) continue;
            float dx = tileX[k] - xi;
            float dy = tileY[k] - yi;
            float len2 = dx * dx + dy * dy;
            float notzero = len2 != 0.0f ? 1.0f : 0.0f;
            len2 += (1.0f - notzero);
            float invLen = notzero * native_rsqrt(len2);
            float Fg = (G * mi) * (tileM[k] * invLen * invLen);
            fx += dx * invLen * Fg;
            fy += dy * invLen * Fg;
        }
        barrier(CLK_LOCAL_MEM_FENCE);
    }

    if (i < count) {
        forceX[i] = fx;
        forceY[i] = fy;
    }
}
`

const kernelSourceTiledPadded = `
__kernel void forces(
    __global const float *x,
    __global const float *y,
    __global const float *mass,
    __global float *forceX,
    __global float *forceY,
    const int count,
    __local float *tileX,
    __local float *tileY,
    __local float *tileM)
{
    // Buffers are pre-padded to a multiple of the work-group size with
    // zero mass, so every work-item can skip the bounds check entirely
    // and padding lanes contribute nothing (mass == 0).
    const float G = 6.6732e-11f;
    int i = get_global_id(0);
    int lid = get_local_id(0);
    int tileSize = get_local_size(0);

    float xi = x[i];
    float yi = y[i];
    float mi = mass[i];
    float fx = 0.0f, fy = 0.0f;

    int tiles = count / tileSize;
    for (int t = 0; t < tiles; t++) {
        int src = t * tileSize + lid;
        tileX[lid] = x[src];
        tileY[lid] = y[src];
        tileM[lid] = mass[src];
        barrier(CLK_LOCAL_MEM_FENCE);

        for (int k = 0; k < tileSize; k++) {
            int j = t * tileSize + k;
            float dx = tileX[k] - xi;
            float dy = tileY[k] - yi;
            float len2 = dx * dx + dy * dy;
            float notzero = (j != i && len2 != 0.0f) ? 1.0f : 0.0f;
            len2 += (1.0f - notzero);
            float invLen = notzero * native_rsqrt(len2);
            float Fg = (G * mi) * (tileM[k] * invLen * invLen);
            fx += dx * invLen * Fg;
            fy += dy * invLen * Fg;
        }
        barrier(CLK_LOCAL_MEM_FENCE);
    }

    forceX[i] = fx;
    forceY[i] = fy;
}
`

// ErrNoDevices indicates that no usable OpenCL devices were found.
var ErrNoDevices = errors.New("backend: no opencl devices found")

// gpuBackend owns the compiled kernel and its device context. It is
// constructed once per controller lifetime and reused across ticks, as
// kernel compilation is too costly to repeat per tick.
type gpuBackend struct {
	context    C.cl_context
	queue      C.cl_command_queue
	program    C.cl_program
	kernel     C.cl_kernel
	deviceID   C.cl_device_id
	variant    KernelVariant
	groupSize  int
	deviceName string
}

func newGPUBackend() (Backend, func(), error) {
	b, err := initGPUBackend(KernelTiled, defaultWorkGroupSize)
	if err != nil {
		return nil, noopCleanup, err
	}
	return b, b.release, nil
}

func initGPUBackend(variant KernelVariant, groupSize int) (*gpuBackend, error) {
	device, err := selectDevice()
	if err != nil {
		return nil, err
	}

	var status C.cl_int
	context := C.clCreateContext(nil, 1, &device, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	queue := C.gravsim_create_queue(context, device, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, statusError("clCreateCommandQueue", status)
	}

	source := kernelSource(variant)
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))

	program := C.clCreateProgramWithSource(context, 1, &csrc, nil, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseCommandQueue(queue)
		C.clReleaseContext(context)
		return nil, statusError("clCreateProgramWithSource", status)
	}

	status = C.clBuildProgram(program, 1, &device, nil, nil, nil)
	if status != C.CL_SUCCESS {
		C.clReleaseProgram(program)
		C.clReleaseCommandQueue(queue)
		C.clReleaseContext(context)
		return nil, statusError("clBuildProgram", status)
	}

	kernelName := C.CString("forces")
	defer C.free(unsafe.Pointer(kernelName))
	kernel := C.clCreateKernel(program, kernelName, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseProgram(program)
		C.clReleaseCommandQueue(queue)
		C.clReleaseContext(context)
		return nil, statusError("clCreateKernel", status)
	}

	name, _ := getDeviceString(device, C.CL_DEVICE_NAME)
	slog.Info("gpu backend initialized", "device", name, "variant", variant, "group_size", groupSize)

	return &gpuBackend{
		context:    context,
		queue:      queue,
		program:    program,
		kernel:     kernel,
		deviceID:   device,
		variant:    variant,
		groupSize:  groupSize,
		deviceName: name,
	}, nil
}

func kernelSource(v KernelVariant) string {
	switch v {
	case KernelTiledPadded:
		return kernelSourceTiledPadded
	case KernelTiled:
		return kernelSourceTiled
	default:
		return kernelSourceNaive
	}
}

func selectDevice() (C.cl_device_id, error) {
	var platformCount C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &platformCount)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if platformCount == 0 {
		return nil, ErrNoDevices
	}

	platforms := make([]C.cl_platform_id, int(platformCount))
	status = C.clGetPlatformIDs(platformCount, &platforms[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	var gpu, cpu, any *C.cl_device_id
	for _, p := range platforms {
		devices, err := devicesOf(p, C.CL_DEVICE_TYPE_GPU)
		if err == nil && len(devices) > 0 && gpu == nil {
			d := devices[0]
			gpu = &d
		}
		devices, err = devicesOf(p, C.CL_DEVICE_TYPE_CPU)
		if err == nil && len(devices) > 0 && cpu == nil {
			d := devices[0]
			cpu = &d
		}
		devices, err = devicesOf(p, C.CL_DEVICE_TYPE_ALL)
		if err == nil && len(devices) > 0 && any == nil {
			d := devices[0]
			any = &d
		}
	}

	switch {
	case gpu != nil:
		return *gpu, nil
	case cpu != nil:
		return *cpu, nil
	case any != nil:
		return *any, nil
	default:
		return nil, ErrNoDevices
	}
}

func devicesOf(platform C.cl_platform_id, deviceType C.cl_device_type) ([]C.cl_device_id, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, deviceType, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || count == 0 {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	ids := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform, deviceType, count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}
	return ids, nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS || size == 0 {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}

func statusError(prefix string, status C.cl_int) error {
	return fmt.Errorf("%w: %s: %s (%d)", ErrBackendUnavailable, prefix, C.GoString(C.gravsim_cl_error_string(status)), int(status))
}

// Forces pads the body count up to a multiple of the work-group size
// with zero-mass entries, uploads x/y/mass, enqueues one work-item per
// (padded) body, reads back the force buffers, and discards padding.
func (b *gpuBackend) Forces(s *body.Store) []vec2.Vec2 {
	n := s.Len()
	if n == 0 {
		return nil
	}
	padded := ((n + b.groupSize - 1) / b.groupSize) * b.groupSize

	hx := make([]C.float, padded)
	hy := make([]C.float, padded)
	hm := make([]C.float, padded)
	for i := 0; i < n; i++ {
		hx[i] = C.float(s.X()[i])
		hy[i] = C.float(s.Y()[i])
		hm[i] = C.float(s.Mass()[i])
	}

	var status C.cl_int
	bytes := C.size_t(padded) * C.size_t(unsafe.Sizeof(C.float(0)))

	bufX := C.clCreateBuffer(b.context, C.CL_MEM_READ_ONLY|C.CL_MEM_COPY_HOST_PTR, bytes, unsafe.Pointer(&hx[0]), &status)
	bufY := C.clCreateBuffer(b.context, C.CL_MEM_READ_ONLY|C.CL_MEM_COPY_HOST_PTR, bytes, unsafe.Pointer(&hy[0]), &status)
	bufM := C.clCreateBuffer(b.context, C.CL_MEM_READ_ONLY|C.CL_MEM_COPY_HOST_PTR, bytes, unsafe.Pointer(&hm[0]), &status)
	bufFX := C.clCreateBuffer(b.context, C.CL_MEM_WRITE_ONLY, bytes, nil, &status)
	bufFY := C.clCreateBuffer(b.context, C.CL_MEM_WRITE_ONLY, bytes, nil, &status)
	defer func() {
		C.clReleaseMemObject(bufX)
		C.clReleaseMemObject(bufY)
		C.clReleaseMemObject(bufM)
		C.clReleaseMemObject(bufFX)
		C.clReleaseMemObject(bufFY)
	}()

	count := C.cl_int(padded)
	argc := 0
	setArg := func(ptr unsafe.Pointer, size C.size_t) {
		C.clSetKernelArg(b.kernel, C.cl_uint(argc), size, ptr)
		argc++
	}
	setArg(unsafe.Pointer(&bufX), C.size_t(unsafe.Sizeof(bufX)))
	setArg(unsafe.Pointer(&bufY), C.size_t(unsafe.Sizeof(bufY)))
	setArg(unsafe.Pointer(&bufM), C.size_t(unsafe.Sizeof(bufM)))
	setArg(unsafe.Pointer(&bufFX), C.size_t(unsafe.Sizeof(bufFX)))
	setArg(unsafe.Pointer(&bufFY), C.size_t(unsafe.Sizeof(bufFY)))
	setArg(unsafe.Pointer(&count), C.size_t(unsafe.Sizeof(count)))
	if b.variant != KernelNaive {
		localBytes := C.size_t(b.groupSize) * C.size_t(unsafe.Sizeof(C.float(0)))
		setArg(nil, localBytes)
		setArg(nil, localBytes)
		setArg(nil, localBytes)
	}

	global := C.size_t(padded)
	local := C.size_t(b.groupSize)
	C.clEnqueueNDRangeKernel(b.queue, b.kernel, 1, nil, &global, &local, 0, nil, nil)

	outFX := make([]C.float, padded)
	outFY := make([]C.float, padded)
	C.clEnqueueReadBuffer(b.queue, bufFX, C.CL_TRUE, 0, bytes, unsafe.Pointer(&outFX[0]), 0, nil, nil)
	C.clEnqueueReadBuffer(b.queue, bufFY, C.CL_TRUE, 0, bytes, unsafe.Pointer(&outFY[0]), 0, nil, nil)

	forces := make([]vec2.Vec2, n)
	for i := 0; i < n; i++ {
		forces[i] = vec2.Vec2{X: float64(outFX[i]), Y: float64(outFY[i])}
	}
	return forces
}

func (b *gpuBackend) Velocities(s *body.Store, forces []vec2.Vec2, dt float64) []vec2.Vec2 {
	return VelocitiesCommon(s, forces, dt)
}

// Collisions runs on the host: the overlap test is not a bandwidth
// bottleneck worth offloading, and keeping it on the CPU avoids a
// second kernel and an extra host/device round trip every tick.
func (b *gpuBackend) Collisions(s *body.Store) []CollisionPair {
	sb := scalarBackend{workers: 1}
	return sb.Collisions(s)
}

func (b *gpuBackend) release() {
	if b == nil {
		return
	}
	if b.kernel != nil {
		C.clReleaseKernel(b.kernel)
	}
	if b.program != nil {
		C.clReleaseProgram(b.program)
	}
	if b.queue != nil {
		C.clReleaseCommandQueue(b.queue)
	}
	if b.context != nil {
		C.clReleaseContext(b.context)
	}
}
