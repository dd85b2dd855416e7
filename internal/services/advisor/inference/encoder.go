package inference

import (
	"context"
	"fmt"
)

// ClassEncoder is a fitted label encoder: code i is classes[i].
type ClassEncoder struct {
	classes []string
}

func NewClassEncoder(classes []string) (*ClassEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("label encoder has no classes")
	}
	seen := make(map[string]struct{}, len(classes))
	for i, c := range classes {
		if c == "" {
			return nil, fmt.Errorf("label encoder class %d is empty", i)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("label encoder class %q is duplicated", c)
		}
		seen[c] = struct{}{}
	}
	return &ClassEncoder{classes: append([]string(nil), classes...)}, nil
}

func (e *ClassEncoder) Decode(_ context.Context, code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("y contains previously unseen labels: [%d]", code)
	}
	return e.classes[code], nil
}

func (e *ClassEncoder) Classes() []string { return append([]string(nil), e.classes...) }
