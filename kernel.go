package bsort

import "fmt"

// Kernel names. Devices must provide all five.
const (
	KernelInit      = "bsort_init"
	KernelStageN    = "bsort_stage_n"
	KernelStage0    = "bsort_stage_0"
	KernelMerge     = "bsort_merge"
	KernelMergeLast = "bsort_merge_last"
)

var kernelNames = [...]string{
	KindInit:      KernelInit,
	KindStageN:    KernelStageN,
	KindStage0:    KernelStage0,
	KindMerge:     KernelMerge,
	KindMergeLast: KernelMergeLast,
}

// Kernels returns the kernel names in network order.
func Kernels() []string {
	return []string{KernelInit, KernelStageN, KernelStage0, KernelMerge, KernelMergeLast}
}

// Kernel returns the name of the kernel that runs d.
func (d Descriptor) Kernel() string {
	if int(d.Kind) < len(kernelNames) {
		return kernelNames[d.Kind]
	}
	return ""
}

func kindOf(kernel string) (Kind, bool) {
	for k, name := range kernelNames {
		if name == kernel {
			return Kind(k), true
		}
	}
	return 0, false
}

// ArgKind is the type of a kernel argument.
type ArgKind uint8

const (
	// ArgBuffer is the sort buffer.
	ArgBuffer ArgKind = iota + 1

	// ArgLocal is a work-group local scratch region, sized in elements.
	ArgLocal

	// ArgScalar is a 32-bit integer.
	ArgScalar
)

func (k ArgKind) String() string {
	switch k {
	case ArgBuffer:
		return "buffer"
	case ArgLocal:
		return "local"
	case ArgScalar:
		return "scalar"
	default:
		return fmt.Sprintf("ArgKind(%d)", uint8(k))
	}
}

// Arg is one kernel argument.
type Arg struct {
	Kind   ArgKind
	Buffer *SortBuffer
	Local  int
	Scalar int32
}

// BufferArg returns a buffer argument.
func BufferArg(b *SortBuffer) Arg { return Arg{Kind: ArgBuffer, Buffer: b} }

// LocalArg returns a local scratch argument of n elements.
func LocalArg(n int) Arg { return Arg{Kind: ArgLocal, Local: n} }

// ScalarArg returns an integer argument.
func ScalarArg(v int32) Arg { return Arg{Kind: ArgScalar, Scalar: v} }

func (a Arg) String() string {
	switch a.Kind {
	case ArgBuffer:
		if a.Buffer == nil {
			return "buffer(nil)"
		}
		return fmt.Sprintf("buffer(%d)", a.Buffer.Len())
	case ArgLocal:
		return fmt.Sprintf("local(%d)", a.Local)
	case ArgScalar:
		return fmt.Sprintf("%d", a.Scalar)
	default:
		return a.Kind.String()
	}
}

// argShapes lists the argument kinds each kernel takes, in order.
var argShapes = [...][]ArgKind{
	KindInit:      {ArgBuffer, ArgLocal},
	KindStageN:    {ArgBuffer, ArgLocal, ArgScalar, ArgScalar},
	KindStage0:    {ArgBuffer, ArgLocal, ArgScalar},
	KindMerge:     {ArgBuffer, ArgLocal, ArgScalar, ArgScalar},
	KindMergeLast: {ArgBuffer, ArgLocal, ArgScalar},
}

// LaunchArgs returns the arguments of the kernel that runs d. Every kernel
// takes the buffer and a local scratch of plan.ScratchSize elements. StageN
// adds stage and high stage, Stage0 the high stage, Merge the stage and the
// direction, and MergeLast the direction.
func LaunchArgs(d Descriptor, buf *SortBuffer, plan WorkSizePlan, dir Direction) []Arg {
	args := make([]Arg, 2, 4)
	args[0] = BufferArg(buf)
	args[1] = LocalArg(plan.ScratchSize())
	switch d.Kind {
	case KindStageN:
		args = append(args, ScalarArg(int32(d.Stage)), ScalarArg(int32(d.HighStage))) //nolint:gosec // stage counts fit int32
	case KindStage0:
		args = append(args, ScalarArg(int32(d.HighStage))) //nolint:gosec // stage counts fit int32
	case KindMerge:
		args = append(args, ScalarArg(int32(d.Stage)), ScalarArg(int32(dir))) //nolint:gosec // stage counts fit int32
	case KindMergeLast:
		args = append(args, ScalarArg(int32(dir)))
	}
	return args
}

// Call is a launch checked against the kernel contract. Devices decode every
// launch into a Call before executing it.
type Call struct {
	Kernel     string
	Kind       Kind
	Buffer     *SortBuffer
	Scratch    int
	Stage      int
	HighStage  int
	Direction  Direction
	GlobalSize int
	LocalSize  int
}

// Groups returns the number of work-groups.
func (c Call) Groups() int { return c.GlobalSize / c.LocalSize }

// Region returns the number of elements one work-group owns.
func (c Call) Region() int { return ItemsPerThread * c.LocalSize }

// Descending reports the order group g produces. Init alternates by group,
// StageN and Stage0 alternate by blocks of HighStage groups, and the merge
// kernels follow the direction argument.
func (c Call) Descending(g int) bool {
	switch c.Kind {
	case KindInit:
		return g&1 == 1
	case KindStageN, KindStage0:
		return (g/c.HighStage)&1 == 1
	default:
		return c.Direction.IsDescending()
	}
}

// Partner returns the pair of half-blocks group g compares in a StageN or
// Merge launch.
func (c Call) Partner(g int) (lo, hi int) {
	lo = g + (g/c.Stage)*c.Stage
	return lo, lo + c.Stage
}

// DecodeCall validates a launch and decodes its arguments. Failures are
// returned as *LaunchError.
func DecodeCall(kernel string, args []Arg, globalSize, localSize int) (Call, error) {
	fail := func(format string, a ...any) (Call, error) {
		return Call{}, &LaunchError{Kernel: kernel, Reason: fmt.Sprintf(format, a...)}
	}

	kind, ok := kindOf(kernel)
	if !ok {
		return fail("unknown kernel")
	}
	shape := argShapes[kind]
	if len(args) != len(shape) {
		return fail("want %d arguments, got %d", len(shape), len(args))
	}
	for i, want := range shape {
		if args[i].Kind != want {
			return fail("argument %d is %s, want %s", i, args[i].Kind, want)
		}
	}
	if localSize <= 0 || globalSize <= 0 || globalSize%localSize != 0 {
		return fail("invalid work-group geometry global=%d local=%d", globalSize, localSize)
	}

	c := Call{
		Kernel:     kernel,
		Kind:       kind,
		Buffer:     args[0].Buffer,
		Scratch:    args[1].Local,
		GlobalSize: globalSize,
		LocalSize:  localSize,
	}
	if c.Buffer == nil {
		return fail("nil buffer")
	}
	if c.Buffer.Len() < globalSize*ItemsPerThread {
		return fail("buffer holds %d elements, launch covers %d", c.Buffer.Len(), globalSize*ItemsPerThread)
	}
	if c.Scratch < c.Region() {
		return fail("local scratch %d smaller than work-group region %d", c.Scratch, c.Region())
	}

	switch kind {
	case KindStageN:
		c.Stage, c.HighStage = int(args[2].Scalar), int(args[3].Scalar)
	case KindStage0:
		c.HighStage = int(args[2].Scalar)
	case KindMerge:
		c.Stage, c.Direction = int(args[2].Scalar), Direction(args[3].Scalar)
	case KindMergeLast:
		c.Direction = Direction(args[2].Scalar)
	}
	if (kind == KindStageN || kind == KindMerge) && c.Stage <= 0 {
		return fail("stage %d must be positive", c.Stage)
	}
	if (kind == KindStageN || kind == KindStage0) && c.HighStage <= 0 {
		return fail("high stage %d must be positive", c.HighStage)
	}
	return c, nil
}
