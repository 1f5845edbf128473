package memutils

import (
	"fmt"
	"strings"
)

type FlagBits interface {
	~int32 | ~uint32 | ~int | ~uint | ~uint64
}

// FlagStringMapping provides String support for bitmask flag types. Each
// flag constant registers a name once at init time and FlagsToString
// renders any combination as a pipe-separated list.
type FlagStringMapping[T FlagBits] struct {
	mapping map[T]string
}

func NewFlagStringMapping[T FlagBits]() FlagStringMapping[T] {
	return FlagStringMapping[T]{mapping: make(map[T]string)}
}

func (m FlagStringMapping[T]) Register(value T, str string) {
	m.mapping[value] = str
}

func (m FlagStringMapping[T]) FlagsToString(value T) string {
	if value == 0 {
		return ""
	}

	var parts []string
	var leftover T
	for bit := 0; bit < 64; bit++ {
		single := T(1) << bit
		if single == 0 || value&single == 0 {
			continue
		}

		name, ok := m.mapping[single]
		if !ok {
			leftover |= single
			continue
		}
		parts = append(parts, name)
	}

	if leftover != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(leftover)))
	}

	return strings.Join(parts, "|")
}
