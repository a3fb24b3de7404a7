package pdfdoc

import (
	"errors"
	"strings"
	"testing"
)

func TestNewPageMapping(t *testing.T) {
	tests := []struct {
		name      string
		pages     []int
		total     int
		wantOrder []int
		wantErr   string // "", "range", "empty"
	}{
		{
			name:      "sorted selection kept as is",
			pages:     []int{15, 16},
			total:     100,
			wantOrder: []int{15, 16},
		},
		{
			name:      "unsorted selection sorted ascending",
			pages:     []int{40, 15, 16},
			total:     100,
			wantOrder: []int{15, 16, 40},
		},
		{
			name:      "duplicates removed",
			pages:     []int{7, 3, 7, 3, 9},
			total:     10,
			wantOrder: []int{3, 7, 9},
		},
		{
			name:      "single page",
			pages:     []int{1},
			total:     1,
			wantOrder: []int{1},
		},
		{
			name:    "page zero rejected",
			pages:   []int{0},
			total:   10,
			wantErr: "range",
		},
		{
			name:    "page past the end rejected",
			pages:   []int{5, 11},
			total:   10,
			wantErr: "range",
		},
		{
			name:    "empty selection rejected",
			pages:   []int{},
			total:   10,
			wantErr: "empty",
		},
		{
			name:    "nil selection rejected",
			pages:   nil,
			total:   10,
			wantErr: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewPageMapping(tt.pages, tt.total)

			switch tt.wantErr {
			case "range":
				var oor *OutOfRangeError
				if !errors.As(err, &oor) {
					t.Fatalf("NewPageMapping error = %v, want OutOfRangeError", err)
				}
				return
			case "empty":
				var empty *EmptySelectionError
				if !errors.As(err, &empty) {
					t.Fatalf("NewPageMapping error = %v, want EmptySelectionError", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewPageMapping returned error: %v", err)
			}
			if m.Len() != len(tt.wantOrder) {
				t.Fatalf("Len() = %d, want %d", m.Len(), len(tt.wantOrder))
			}
			for i, wantOrig := range tt.wantOrder {
				got, ok := m.Original(i + 1)
				if !ok || got != wantOrig {
					t.Errorf("Original(%d) = %d, %v, want %d", i+1, got, ok, wantOrig)
				}
			}
		})
	}
}

func TestPageMappingBijection(t *testing.T) {
	// Renumbered indices must be exactly 1..N and originals strictly increasing.
	m, err := NewPageMapping([]int{88, 12, 40, 12, 3}, 120)
	if err != nil {
		t.Fatalf("NewPageMapping returned error: %v", err)
	}

	want := []int{3, 12, 40, 88}
	if m.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", m.Len(), len(want))
	}

	prev := 0
	for n := 1; n <= m.Len(); n++ {
		orig, ok := m.Original(n)
		if !ok {
			t.Fatalf("Original(%d) missing", n)
		}
		if orig <= prev {
			t.Errorf("originals not strictly increasing: Original(%d) = %d after %d", n, orig, prev)
		}
		prev = orig

		// Round trip back to the renumbered index.
		back, ok := m.Renumbered(orig)
		if !ok || back != n {
			t.Errorf("Renumbered(%d) = %d, %v, want %d", orig, back, ok, n)
		}
	}

	if _, ok := m.Original(0); ok {
		t.Error("Original(0) should not resolve")
	}
	if _, ok := m.Original(m.Len() + 1); ok {
		t.Errorf("Original(%d) should not resolve", m.Len()+1)
	}
	if _, ok := m.Renumbered(99); ok {
		t.Error("Renumbered(99) resolved for a page outside the subset")
	}
	if !m.Contains(40) {
		t.Error("Contains(40) = false, want true")
	}
	if m.Contains(41) {
		t.Error("Contains(41) = true, want false")
	}
}

func TestPageMappingDisclaimer(t *testing.T) {
	m, err := NewPageMapping([]int{15, 16}, 100)
	if err != nil {
		t.Fatalf("NewPageMapping returned error: %v", err)
	}

	d := m.Disclaimer()

	if !strings.Contains(d, "原始頁碼") {
		t.Error("disclaimer missing the original-page-number instruction")
	}
	wantLines := []string{
		"新編號第 1 頁 = 原始頁碼第 15 頁",
		"新編號第 2 頁 = 原始頁碼第 16 頁",
	}
	for _, line := range wantLines {
		if !strings.Contains(d, line) {
			t.Errorf("disclaimer missing line %q\ngot:\n%s", line, d)
		}
	}
	if strings.Contains(d, "新編號第 3 頁") {
		t.Error("disclaimer lists a renumbered page beyond the subset")
	}
}

func TestDocumentRangeChecks(t *testing.T) {
	// Range validation happens before any carving or parsing, so a bare
	// handle with a known page count exercises it.
	doc := &Document{pageCount: 10}

	tests := []struct {
		name string
		run  func() error
	}{
		{"subset page zero", func() error {
			_, _, err := doc.Subset([]int{0})
			return err
		}},
		{"subset page past end", func() error {
			_, _, err := doc.Subset([]int{11})
			return err
		}},
		{"probe page zero", func() error {
			_, err := doc.ProbeText([]int{0}, 1)
			return err
		}},
		{"probe page past end", func() error {
			_, err := doc.ProbeText([]int{11}, 1)
			return err
		}},
		{"page text past end", func() error {
			_, err := doc.PageText(11)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var oor *OutOfRangeError
			if !errors.As(err, &oor) {
				t.Errorf("error = %v, want OutOfRangeError", err)
			}
		})
	}

	if _, _, err := doc.Subset(nil); err == nil {
		t.Error("Subset(nil) should fail with EmptySelectionError")
	} else {
		var empty *EmptySelectionError
		if !errors.As(err, &empty) {
			t.Errorf("Subset(nil) error = %v, want EmptySelectionError", err)
		}
	}
}
