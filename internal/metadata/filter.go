package metadata

import (
	"fmt"
	"regexp"
	"strings"

	"cellpipe/internal/config"
)

// Verdict is the three-valued result of evaluating a filter against a
// record. Unknown means the predicate has no opinion (for example, it asks
// about image properties the pipeline has not decoded); a rule treats
// Unknown as a pass, not a skip.
type Verdict int

const (
	Unknown Verdict = iota
	False
	True
)

// ExprKind tags the variants of a filter expression node.
type ExprKind int

const (
	ExprAnd ExprKind = iota
	ExprOr
	ExprNot
	ExprLeaf
)

// Subject is what a leaf predicate inspects.
type Subject int

const (
	SubjectFile Subject = iota
	SubjectDirectory
	SubjectExtension
	SubjectImage
)

// Test is the comparison a leaf predicate performs.
type Test int

const (
	TestContains Test = iota
	TestDoesNotContain
	TestStartsWith
	TestEndsWith
	TestEq
	TestRegexp
	TestIsTif
	TestIsJpg
	TestIsPng
	TestIsImage
	TestIsColor
	TestIsMonochrome
	TestIsStack
)

// Expr is a filter expression tree node. Branch nodes (And/Or/Not) use Args;
// leaf nodes use the predicate fields. Expressions are immutable once
// compiled.
type Expr struct {
	Kind ExprKind
	Args []Expr

	Subject Subject
	Test    Test
	Value   string
	re      *regexp.Regexp
}

// Eval evaluates the expression against a record with three-valued logic:
// And is False if any argument is False, Unknown if any argument is Unknown,
// else True; Or mirrors that; Not of Unknown stays Unknown.
func (e Expr) Eval(rec Record) Verdict {
	switch e.Kind {
	case ExprAnd:
		v := True
		for _, a := range e.Args {
			switch a.Eval(rec) {
			case False:
				return False
			case Unknown:
				v = Unknown
			}
		}
		return v

	case ExprOr:
		v := False
		for _, a := range e.Args {
			switch a.Eval(rec) {
			case True:
				return True
			case Unknown:
				v = Unknown
			}
		}
		return v

	case ExprNot:
		switch e.Args[0].Eval(rec) {
		case True:
			return False
		case False:
			return True
		}
		return Unknown

	default:
		return e.evalLeaf(rec)
	}
}

func (e Expr) evalLeaf(rec Record) Verdict {
	switch e.Subject {
	case SubjectFile:
		return textVerdict(rec.FileName(), e)
	case SubjectDirectory:
		return textVerdict(rec.Directory(), e)
	case SubjectExtension:
		return extensionVerdict(strings.ToLower(rec.Extension()), e.Test)
	default:
		// Image properties (color, monochrome, stack) are not available to
		// this pipeline stage; the predicate has no opinion.
		return Unknown
	}
}

func textVerdict(text string, e Expr) Verdict {
	var ok bool
	switch e.Test {
	case TestContains:
		ok = strings.Contains(text, e.Value)
	case TestDoesNotContain:
		ok = !strings.Contains(text, e.Value)
	case TestStartsWith:
		ok = strings.HasPrefix(text, e.Value)
	case TestEndsWith:
		ok = strings.HasSuffix(text, e.Value)
	case TestEq:
		ok = text == e.Value
	case TestRegexp:
		ok = e.re.MatchString(text)
	default:
		return Unknown
	}
	if ok {
		return True
	}
	return False
}

func extensionVerdict(ext string, test Test) Verdict {
	var ok bool
	switch test {
	case TestIsTif:
		ok = ext == ".tif" || ext == ".tiff"
	case TestIsJpg:
		ok = ext == ".jpg" || ext == ".jpeg"
	case TestIsPng:
		ok = ext == ".png"
	case TestIsImage:
		switch ext {
		case ".tif", ".tiff", ".jpg", ".jpeg", ".png", ".bmp", ".gif":
			ok = true
		}
	default:
		return Unknown
	}
	if ok {
		return True
	}
	return False
}

var leafTests = map[string]Test{
	"contains":         TestContains,
	"does_not_contain": TestDoesNotContain,
	"starts_with":      TestStartsWith,
	"ends_with":        TestEndsWith,
	"eq":               TestEq,
	"regexp":           TestRegexp,
	"is_tif":           TestIsTif,
	"is_jpg":           TestIsJpg,
	"is_png":           TestIsPng,
	"is_image":         TestIsImage,
	"is_color":         TestIsColor,
	"is_monochrome":    TestIsMonochrome,
	"is_stack":         TestIsStack,
}

var leafSubjects = map[string]Subject{
	"file":      SubjectFile,
	"directory": SubjectDirectory,
	"extension": SubjectExtension,
	"image":     SubjectImage,
}

// CompileFilter builds an expression tree from its serialized config form.
// Structural and regex errors are configuration errors.
func CompileFilter(c config.FilterConfig) (Expr, error) {
	switch c.Op {
	case "and", "or", "not":
		kind := ExprAnd
		switch c.Op {
		case "or":
			kind = ExprOr
		case "not":
			kind = ExprNot
		}
		if kind == ExprNot && len(c.Args) != 1 {
			return Expr{}, fmt.Errorf("filter: not node requires exactly one argument")
		}
		if len(c.Args) == 0 {
			return Expr{}, fmt.Errorf("filter: %s node requires at least one argument", c.Op)
		}
		args := make([]Expr, 0, len(c.Args))
		for _, ac := range c.Args {
			a, err := CompileFilter(ac)
			if err != nil {
				return Expr{}, err
			}
			args = append(args, a)
		}
		return Expr{Kind: kind, Args: args}, nil

	case "file", "directory", "extension", "image":
		test, ok := leafTests[c.Test]
		if !ok {
			return Expr{}, fmt.Errorf("filter: unknown test %q", c.Test)
		}
		leaf := Expr{
			Kind:    ExprLeaf,
			Subject: leafSubjects[c.Op],
			Test:    test,
			Value:   c.Value,
		}
		if test == TestRegexp {
			re, err := regexp.Compile(c.Value)
			if err != nil {
				return Expr{}, fmt.Errorf("filter: invalid regexp %q: %w", c.Value, err)
			}
			leaf.re = re
		}
		return leaf, nil

	default:
		return Expr{}, fmt.Errorf("filter: unknown op %q", c.Op)
	}
}
