package requestcache

import (
	"errors"
	"io"
	"testing"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return "bad status" }
func (e *statusErr) HTTPStatus() int { return e.code }

func TestUpstreamError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UpstreamError
		want string
	}{
		{
			name: "with status and cause",
			err:  &UpstreamError{StatusCode: 503, Err: errors.New("service unavailable")},
			want: "upstream request failed (status 503): service unavailable",
		},
		{
			name: "cause only",
			err:  &UpstreamError{Err: io.EOF},
			want: "upstream request failed: EOF",
		},
		{
			name: "empty",
			err:  &UpstreamError{},
			want: "upstream request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpstreamError_Is(t *testing.T) {
	err := error(&UpstreamError{Err: io.EOF})

	if !errors.Is(err, ErrUpstream) {
		t.Error("errors.Is(err, ErrUpstream) = false, want true")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("errors.Is(err, io.EOF) = false, want true")
	}
}

func TestAsUpstreamError(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		got := asUpstreamError(io.EOF)
		if got.StatusCode != 0 || !errors.Is(got, io.EOF) {
			t.Errorf("asUpstreamError() = %+v", got)
		}
	})

	t.Run("status error", func(t *testing.T) {
		got := asUpstreamError(&statusErr{code: 429})
		if got.StatusCode != 429 {
			t.Errorf("StatusCode = %d, want 429", got.StatusCode)
		}
	})

	t.Run("already upstream error", func(t *testing.T) {
		orig := &UpstreamError{StatusCode: 500}
		if got := asUpstreamError(orig); got != orig {
			t.Error("asUpstreamError() should return the original error")
		}
	})
}
