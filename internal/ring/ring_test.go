package ring

import (
	"reflect"
	"testing"
)

var bufferTests = []struct {
	name string
	ops  func() any
	want any
}{
	{
		name: "new_4",
		ops: func() any {
			return NewBuffer[int](4)
		},
		want: &Buffer[int]{data: make([]int, 4)},
	},
	{
		name: "push_2_of_4",
		ops: func() any {
			r := NewBuffer[int](4)
			r.Push(1)
			r.Push(2)
			return r
		},
		want: &Buffer[int]{data: []int{1, 2, 0, 0}, head: 0, tail: 2},
	},
	{
		name: "push_4_of_4_marks_full",
		ops: func() any {
			r := NewBuffer[int](4)
			for _, v := range []int{1, 2, 3, 4} {
				r.Push(v)
			}
			return r
		},
		want: &Buffer[int]{data: []int{1, 2, 3, 4}, head: 0, tail: 0, full: true},
	},
	{
		name: "push_5_of_4_drops_oldest",
		ops: func() any {
			r := NewBuffer[int](4)
			for _, v := range []int{1, 2, 3, 4, 5} {
				r.Push(v)
			}
			return r
		},
		want: &Buffer[int]{data: []int{5, 2, 3, 4}, head: 1, tail: 1, full: true},
	},
	{
		name: "slice_wrapped",
		ops: func() any {
			r := NewBuffer[int](4)
			for _, v := range []int{1, 2, 3, 4, 5} {
				r.Push(v)
			}
			return r.Slice()
		},
		want: []int{2, 3, 4, 5},
	},
	{
		name: "last_after_wrap",
		ops: func() any {
			r := NewBuffer[int](3)
			for _, v := range []int{1, 2, 3, 4} {
				r.Push(v)
			}
			v, ok := r.Last()
			return []any{v, ok}
		},
		want: []any{4, true},
	},
	{
		name: "last_empty",
		ops: func() any {
			r := NewBuffer[int](3)
			v, ok := r.Last()
			return []any{v, ok}
		},
		want: []any{0, false},
	},
	{
		name: "reset_clears_full",
		ops: func() any {
			r := NewBuffer[int](2)
			r.Push(1)
			r.Push(2)
			r.Reset()
			return r
		},
		want: &Buffer[int]{data: []int{1, 2}},
	},
}

func TestBuffer(t *testing.T) {
	for _, test := range bufferTests {
		t.Run(test.name, func(t *testing.T) {
			got := test.ops()
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("expected result:\ngot:  %#v\nwant: %#v", got, test.want)
			}
		})
	}
}

func TestBufferLen(t *testing.T) {
	r := NewBuffer[int](4)
	if r.Len() != 0 {
		t.Fatalf("empty buffer should have length 0, got %d", r.Len())
	}
	r.Push(1)
	r.Push(2)
	if r.Len() != 2 {
		t.Fatalf("expected length 2, got %d", r.Len())
	}
	r.Push(3)
	r.Push(4)
	if r.Len() != 4 {
		t.Fatalf("expected length 4, got %d", r.Len())
	}
	r.Push(5)
	if r.Len() != 4 {
		t.Fatalf("full buffer should stay at capacity, got %d", r.Len())
	}
}
