package drive_test

import (
	"errors"
	"fmt"
	"testing"

	"drive-go/internal/drive"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		input   string
		want    drive.Permission
		wantErr bool
	}{
		{"VIEW", drive.PermissionView, false},
		{"edit", drive.PermissionEdit, false},
		{" Download ", drive.PermissionDownload, false},
		{"all", drive.PermissionAll, false},
		{"owner", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := drive.ParsePermission(tt.input)
			if tt.wantErr {
				if !errors.Is(err, drive.ErrInvalidState) {
					t.Fatalf("ParsePermission(%q) error = %v, want ErrInvalidState", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePermission(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePermission(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPermission_Gates(t *testing.T) {
	tests := []struct {
		perm         drive.Permission
		download     bool
		edit         bool
		outranksView bool
	}{
		{drive.PermissionView, false, false, false},
		{drive.PermissionDownload, true, false, true},
		{drive.PermissionEdit, true, true, true},
		{drive.PermissionAll, true, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			if got := tt.perm.AllowsDownload(); got != tt.download {
				t.Errorf("AllowsDownload() = %v, want %v", got, tt.download)
			}
			if got := tt.perm.AllowsEdit(); got != tt.edit {
				t.Errorf("AllowsEdit() = %v, want %v", got, tt.edit)
			}
			if got := tt.perm.Outranks(drive.PermissionView); got != tt.outranksView {
				t.Errorf("Outranks(VIEW) = %v, want %v", got, tt.outranksView)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("%w: x", drive.ErrNotFound), "not_found"},
		{fmt.Errorf("outer: %w", fmt.Errorf("%w: x", drive.ErrForbidden)), "forbidden"},
		{fmt.Errorf("%w: commit: %w", drive.ErrInconsistentState, drive.ErrIOFailure), "inconsistent_state"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		if got := drive.ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFileRecord_Clone(t *testing.T) {
	r := &drive.FileRecord{ID: "a", StoragePath: "/r/a"}
	c := r.Clone()
	c.StoragePath = "/r/b"
	if r.StoragePath != "/r/a" {
		t.Error("Clone() shares state with the original")
	}
}
