package pending

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-cloudbridge/internal/cloud"
)

func TestIssue(t *testing.T) {
	tests := []struct {
		name        string
		errs        []error
		wantCalls   int
		wantReason  Reason
		wantPending bool
	}{
		{name: "success stays pending", errs: []error{nil}, wantCalls: 1, wantPending: true},
		{name: "timeout retried once then succeeds", errs: []error{&cloud.TimeoutError{StatusCode: 504}, nil}, wantCalls: 2, wantPending: true},
		{name: "timeout twice surfaces", errs: []error{&cloud.TimeoutError{}, &cloud.TimeoutError{}}, wantCalls: 2, wantReason: ReasonTimeout},
		{name: "offline not retried", errs: []error{&cloud.DeviceOfflineError{DeviceID: "d1"}}, wantCalls: 1, wantReason: ReasonOffline},
		{name: "not found", errs: []error{&cloud.DeviceNotFoundError{DeviceID: "d1"}}, wantCalls: 1, wantReason: ReasonNotFound},
		{name: "api error verbatim", errs: []error{&cloud.APIError{StatusCode: 400, Message: "bad"}}, wantCalls: 1, wantReason: ReasonFailed},
		{name: "connection not retried here", errs: []error{&cloud.ConnectionError{Err: errors.New("x")}}, wantCalls: 1, wantReason: ReasonFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			s := newTestState(&fakeClock{}, rec)
			calls := 0
			send := func(context.Context) error {
				err := tt.errs[calls]
				calls++
				return err
			}

			err := Issue(context.Background(), s, "d1", powerTarget{on: boolPtr(true)}, send)

			if calls != tt.wantCalls {
				t.Errorf("send calls = %d, want %d", calls, tt.wantCalls)
			}
			if s.Active() != tt.wantPending {
				t.Errorf("Active() = %v, want %v", s.Active(), tt.wantPending)
			}
			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("Issue() error = %v", err)
				}
				return
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("Issue() error = %v, want *Error", err)
			}
			if perr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", perr.Reason, tt.wantReason)
			}
			if got := rec.list(); got[len(got)-1] != Failed {
				t.Errorf("last outcome = %v, want Failed", got[len(got)-1])
			}
		})
	}
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Reason: ReasonOffline, DeviceID: "d1"}, "device d1 is offline"},
		{&Error{Reason: ReasonTimeout, Err: cloud.ErrTimeout}, "request timed out"},
		{&Error{Reason: ReasonFailed, Err: errors.New("verbatim")}, "verbatim"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIssue_ConfirmedBeforeSendReturns(t *testing.T) {
	s := newTestState(&fakeClock{}, &recorder{})
	send := func(context.Context) error {
		s.Clear()
		return nil
	}
	if err := Issue(context.Background(), s, "d1", powerTarget{on: boolPtr(true)}, send); err != nil {
		t.Fatal(err)
	}
	if s.Active() {
		t.Error("Issue re-armed a command cleared during send")
	}
}

func TestSend(t *testing.T) {
	calls := 0
	err := Send(context.Background(), "tv", func(context.Context) error {
		calls++
		if calls == 1 {
			return &cloud.TimeoutError{}
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Send() = %v after %d calls", err, calls)
	}
}
