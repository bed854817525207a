package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/voxcast/pkg/blocky"
	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/raycast"
	"github.com/chazu/voxcast/pkg/scene"
	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms voxcast Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: set-voxel -> set_voxel
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a vector.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps a kernel solid so it can flow from the shape builtins
// into voxelize.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return "(" + s.desc + ")"
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpBox wraps a collision box for model definitions.
type sexpBox struct {
	box sdf.Box3
}

func (b *sexpBox) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(aabb (vec3 %g %g %g) (vec3 %g %g %g))",
		b.box.Min.X, b.box.Min.Y, b.box.Min.Z, b.box.Max.X, b.box.Max.Y, b.box.Max.Z)
}
func (b *sexpBox) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value is a flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toInt extracts a non-negative integer from a Sexp. Floats are accepted
// when they hold an integral value.
func toInt(s zygo.Sexp) (uint64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		if v.Val < 0 {
			return 0, fmt.Errorf("expected non-negative integer, got %d", v.Val)
		}
		return uint64(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val < 0 || v.Val != math.Trunc(v.Val) {
			return 0, fmt.Errorf("expected non-negative integer, got %g", v.Val)
		}
		return uint64(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toPositive extracts a number greater than zero.
func toPositive(s zygo.Sexp) (float64, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if !(f > 0) {
		return 0, fmt.Errorf("expected positive number, got %g", f)
	}
	return f, nil
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toPos extracts a voxel position from a sexpVec3, flooring each component.
func toPos(s zygo.Sexp) (voxel.Pos, error) {
	v, err := toVec3(s)
	if err != nil {
		return voxel.Pos{}, err
	}
	return voxel.FloorPos(v), nil
}

// toSolid extracts a kernel solid.
func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toChannel converts a keyword or string to a voxel channel.
func toChannel(s zygo.Sexp) (voxel.Channel, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected channel keyword: %w", err)
	}
	return voxel.ParseChannel(name)
}

// toValue converts a number to a value suited to ch.
func toValue(ch voxel.Channel, s zygo.Sexp) (voxel.Value, error) {
	if ch.IsFloat() {
		f, err := toFloat64(s)
		if err != nil {
			return voxel.Value{}, err
		}
		return voxel.Float(f), nil
	}
	i, err := toInt(s)
	if err != nil {
		return voxel.Value{}, err
	}
	return voxel.Int(i), nil
}

// channelValue finds the channel and value to write in a set-voxel or fill
// call: one of :type, :sdf or :color, or :channel with :value.
func channelValue(pa kwArgs) (voxel.Channel, voxel.Value, error) {
	shortcuts := []voxel.Channel{voxel.ChannelType, voxel.ChannelSDF, voxel.ChannelColor}
	for _, ch := range shortcuts {
		if v, ok := pa.kw[ch.String()]; ok {
			val, err := toValue(ch, v)
			if err != nil {
				return 0, voxel.Value{}, fmt.Errorf("%s: %w", ch, err)
			}
			return ch, val, nil
		}
	}
	chArg, ok := pa.kw["channel"]
	if !ok {
		return 0, voxel.Value{}, fmt.Errorf("expected :type, :sdf, :color or :channel with :value")
	}
	ch, err := toChannel(chArg)
	if err != nil {
		return 0, voxel.Value{}, fmt.Errorf("channel: %w", err)
	}
	v, ok := pa.kw["value"]
	if !ok {
		return 0, voxel.Value{}, fmt.Errorf(":channel needs a :value")
	}
	val, err := toValue(ch, v)
	if err != nil {
		return 0, voxel.Value{}, fmt.Errorf("value: %w", err)
	}
	return ch, val, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

func intSexp(n int) zygo.Sexp { return &zygo.SexpInt{Val: int64(n)} }

// registerBuiltins installs the voxcast builtins into a zygomys environment.
// Voxel edits, models and raycasts go to sc; shapes are built with k.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, sc *scene.Scene, k kernel.Kernel) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (set-voxel (vec3 1 2 3) :type 1)
	// (set-voxel (vec3 1 2 3) :channel :data5 :value 7)
	// -----------------------------------------------------------------------
	env.AddFunction("set_voxel", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("set-voxel requires a position")
		}
		p, err := toPos(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-voxel: position: %w", err)
		}
		ch, v, err := channelValue(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-voxel: %w", err)
		}
		if err := sc.Store.SetVoxel(p, ch, v); err != nil {
			return zygo.SexpNull, fmt.Errorf("set-voxel: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (fill (vec3 0 0 0) (vec3 16 1 16) :color 255)
	// -----------------------------------------------------------------------
	env.AddFunction("fill", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("fill requires a min and max position")
		}
		min, err := toPos(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fill: min: %w", err)
		}
		max, err := toPos(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fill: max: %w", err)
		}
		ch, v, err := channelValue(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fill: %w", err)
		}
		if err := sc.Store.Fill(min, max, ch, v); err != nil {
			return zygo.SexpNull, fmt.Errorf("fill: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (box 4 2 6)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("box requires 3 dimensions, got %d", len(args))
		}
		var d [3]float64
		for i := range d {
			f, err := toPositive(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i, err)
			}
			d[i] = f
		}
		return &sexpSolid{
			solid: k.Box(d[0], d[1], d[2]),
			desc:  fmt.Sprintf("box %g %g %g", d[0], d[1], d[2]),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere 5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
		}
		r, err := toPositive(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		return &sexpSolid{solid: k.Sphere(r), desc: fmt.Sprintf("sphere %g", r)}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 10 :radius 3)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var dims [2]float64
		for i, key := range []string{"height", "radius"} {
			v, ok := pa.kw[key]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cylinder requires :%s", key)
			}
			f, err := toPositive(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: %s: %w", key, err)
			}
			dims[i] = f
		}
		return &sexpSolid{
			solid: k.Cylinder(dims[0], dims[1], 0),
			desc:  fmt.Sprintf("cylinder :height %g :radius %g", dims[0], dims[1]),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b c ...), (difference a b c ...), (intersection a b c ...)
	// -----------------------------------------------------------------------
	booleans := map[string]func(a, b kernel.Solid) kernel.Solid{
		"union":        k.Union,
		"difference":   k.Difference,
		"intersection": k.Intersection,
	}
	for opName, op := range booleans {
		opName, op := opName, op
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 solids, got %d", opName, len(args))
			}
			acc, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: argument 1: %w", opName, err)
			}
			out := acc.solid
			for i := 1; i < len(args); i++ {
				s, err := toSolid(args[i])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: argument %d: %w", opName, i+1, err)
				}
				out = op(out, s.solid)
			}
			return &sexpSolid{solid: out, desc: fmt.Sprintf("%s of %d solids", opName, len(args))}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (translate solid (vec3 10 0 0)), (rotate solid (vec3 0 0 90))
	// -----------------------------------------------------------------------
	transforms := map[string]func(s kernel.Solid, x, y, z float64) kernel.Solid{
		"translate": k.Translate,
		"rotate":    k.Rotate,
	}
	for opName, op := range transforms {
		opName, op := opName, op
		env.AddFunction(opName, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a solid and a vec3", opName)
			}
			s, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			v, err := toVec3(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", opName, err)
			}
			return &sexpSolid{
				solid: op(s.solid, v.X, v.Y, v.Z),
				desc:  fmt.Sprintf("%s (%s) (vec3 %g %g %g)", opName, s.desc, v.X, v.Y, v.Z),
			}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (voxelize solid :type 1 :margin 2) => number of voxels inside
	// -----------------------------------------------------------------------
	env.AddFunction("voxelize", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("voxelize requires a solid")
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("voxelize: %w", err)
		}
		typeID, margin := uint64(1), uint64(2)
		if v, ok := pa.kw["type"]; ok {
			if typeID, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("voxelize: type: %w", err)
			}
		}
		if v, ok := pa.kw["margin"]; ok {
			if margin, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("voxelize: margin: %w", err)
			}
		}
		n, err := kernel.Voxelize(s.solid, sc.Store, int(margin), typeID)
		if err != nil {
			return zygo.SexpNull, err
		}
		return intSexp(n), nil
	})

	// -----------------------------------------------------------------------
	// (preview solid) => triangle count of the kernel mesh
	// -----------------------------------------------------------------------
	env.AddFunction("preview", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("preview requires a solid")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("preview: %w", err)
		}
		m, err := k.ToMesh(s.solid)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("preview: %w", err)
		}
		m.Name = s.desc
		sc.Previews = append(sc.Previews, m)
		return intSexp(m.TriangleCount()), nil
	})

	// -----------------------------------------------------------------------
	// (aabb (vec3 0 0 0) (vec3 1 0.5 1))
	// -----------------------------------------------------------------------
	env.AddFunction("aabb", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("aabb requires a min and max corner")
		}
		min, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("aabb: min: %w", err)
		}
		max, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("aabb: max: %w", err)
		}
		return &sexpBox{box: sdf.Box3{Min: min, Max: max}}, nil
	})

	// -----------------------------------------------------------------------
	// (model "slab" :mask 1 :boxes (list (aabb ...))) => type id
	// -----------------------------------------------------------------------
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("model requires a name")
		}
		modelName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("model: name: %w", err)
		}
		if _, exists := sc.Library.Lookup(modelName); exists {
			return zygo.SexpNull, fmt.Errorf("model: %q is already defined", modelName)
		}

		m := blocky.FullCube(modelName)
		if v, ok := pa.kw["mask"]; ok {
			mask, err := toInt(v)
			if err != nil || mask > math.MaxUint32 {
				return zygo.SexpNull, fmt.Errorf("model: mask must be a 32-bit integer")
			}
			m.CollisionMask = uint32(mask)
		}
		if v, ok := pa.kw["boxes"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("model: boxes: %w", err)
			}
			m.CollisionBoxes = nil
			for i, item := range items {
				b, ok := item.(*sexpBox)
				if !ok {
					return zygo.SexpNull, fmt.Errorf("model: box %d: expected aabb, got %T", i, item)
				}
				m.CollisionBoxes = append(m.CollisionBoxes, b.box)
			}
		}
		return intSexp(sc.Library.AddModel(m)), nil
	})

	// -----------------------------------------------------------------------
	// (use-mesher :blocky)
	// -----------------------------------------------------------------------
	env.AddFunction("use_mesher", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("use-mesher requires a mesher name")
		}
		mesherName, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("use-mesher: %w", err)
		}
		if err := sc.SetMesher(mesherName); err != nil {
			return zygo.SexpNull, fmt.Errorf("use-mesher: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (transform :translate (vec3 10 0 0) :rotate (vec3 0 0 90) :scale 2)
	// -----------------------------------------------------------------------
	env.AddFunction("transform", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		m := sdf.Identity3d()
		if v, ok := pa.kw["translate"]; ok {
			t, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("transform: translate: %w", err)
			}
			m = m.Mul(sdf.Translate3d(t))
		}
		if v, ok := pa.kw["rotate"]; ok {
			r, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("transform: rotate: %w", err)
			}
			rad := r.MulScalar(math.Pi / 180)
			m = m.Mul(sdf.RotateZ(rad.Z)).Mul(sdf.RotateY(rad.Y)).Mul(sdf.RotateX(rad.X))
		}
		if v, ok := pa.kw["scale"]; ok {
			var s v3.Vec
			if f, err := toPositive(v); err == nil {
				s = v3.Vec{X: f, Y: f, Z: f}
			} else if s, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("transform: scale: expected positive number or vec3")
			}
			if !(s.X > 0 && s.Y > 0 && s.Z > 0) {
				return zygo.SexpNull, fmt.Errorf("transform: scale must be positive on every axis")
			}
			m = m.Mul(sdf.Scale3d(s))
		}
		sc.ToWorld = m
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (raycast origin direction :max-distance 100 :mask 1 :iterations 8)
	//   => (x y z distance) on a hit, nil on a miss
	// -----------------------------------------------------------------------
	env.AddFunction("raycast", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("raycast requires an origin and a direction")
		}
		origin, err := toVec3(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("raycast: origin: %w", err)
		}
		dir, err := toVec3(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("raycast: direction: %w", err)
		}
		ray := raycast.Ray{Origin: origin, Direction: dir, MaxDistance: 100}
		if v, ok := pa.kw["max-distance"]; ok {
			if ray.MaxDistance, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("raycast: max-distance: %w", err)
			}
		}
		opts := sc.Options
		if v, ok := pa.kw["mask"]; ok {
			mask, err := toInt(v)
			if err != nil || mask > math.MaxUint32 {
				return zygo.SexpNull, fmt.Errorf("raycast: mask must be a 32-bit integer")
			}
			opts.CollisionMask = uint32(mask)
		}
		if v, ok := pa.kw["iterations"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("raycast: iterations: %w", err)
			}
			opts.BinarySearchIterations = int(n)
		}

		c, err := sc.CastWith(ray, opts)
		if err != nil {
			return zygo.SexpNull, err
		}
		if !c.Hit {
			return zygo.SexpNull, nil
		}
		p := c.Result.Position
		return zygo.MakeList([]zygo.Sexp{
			intSexp(p.X), intSexp(p.Y), intSexp(p.Z),
			&zygo.SexpFloat{Val: c.Result.Distance},
		}), nil
	})
}
