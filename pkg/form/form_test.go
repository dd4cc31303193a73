package form_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-formstate/pkg/form"
)

func TestSubmitBlockedWhilePendingThenSnapshot(t *testing.T) {
	checker := newControlledAsync()
	username := form.NewField(form.KindString, "",
		form.WithValidators(required()),
		form.WithAsyncValidators(checker),
		form.GateAsyncOnSync(),
	)
	guests := form.MustArray(nil, form.WithItemKind(form.KindString))
	stamp := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var handled []form.Submission
	f := form.MustNew(form.MustGroup([]form.Entry{
		form.Child("username", username),
		form.Child("guests", guests),
	}),
		form.WithClock(func() time.Time { return stamp }),
		form.WithSubmitHandler(form.SubmitHandlerFunc(func(_ context.Context, s form.Submission) error {
			handled = append(handled, s)
			return nil
		})),
	)

	_ = username.SetValue("carol")
	call := checker.next(t)

	for range 2 {
		sub, err := f.Submit(context.Background())
		if !errors.Is(err, form.ErrSubmitPending) {
			t.Fatalf("expected ErrSubmitPending, got %v", err)
		}
		if diff := cmp.Diff(form.Submission{}, sub); diff != "" {
			t.Fatalf("pending submit produced payload (-want +got):\n%s", diff)
		}
	}
	checker.assertIdle(t)
	if len(handled) != 0 {
		t.Fatal("handler must not run for a pending submit")
	}
	if !f.Submitted() || !username.Touched() || !guests.Touched() {
		t.Fatal("submit must mark every node touched")
	}

	call.reply <- nil
	waitSettled(t, f)
	for _, name := range []string{"ann", "ben"} {
		if _, err := guests.Append(name); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sub, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := form.Submission{
		ID: sub.ID,
		Values: map[string]any{
			"username": "carol",
			"guests":   []any{"ann", "ben"},
		},
		SubmittedAt: stamp,
	}
	if diff := cmp.Diff(want, sub); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
	if sub.ID == "" {
		t.Fatal("submission id is empty")
	}
	if diff := cmp.Diff([]form.Submission{sub}, handled); diff != "" {
		t.Fatalf("handled mismatch (-want +got):\n%s", diff)
	}

	sub.Values["guests"].([]any)[0] = "mutated"
	if diff := cmp.Diff([]any{"ann", "ben"}, guests.Values()); diff != "" {
		t.Fatalf("payload aliases form state (-want +got):\n%s", diff)
	}
}

func TestSubmitInvalidRejectsWithoutPayload(t *testing.T) {
	metrics, _ := form.NewMetrics(nil)
	name := form.NewField(form.KindString, "", form.WithValidators(required()))
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("name", name)}), form.WithMetrics(metrics))

	if _, err := f.Submit(context.Background()); !errors.Is(err, form.ErrSubmitInvalid) {
		t.Fatalf("expected ErrSubmitInvalid, got %v", err)
	}
	if !name.Touched() {
		t.Fatal("invalid submit must still mark fields touched")
	}
	if got := testutil.ToFloat64(metrics.Submissions().WithLabelValues("rejected")); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
}

func TestSubmitHandlerErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("name", form.NewField(form.KindString, "ann"))}),
		form.WithSubmitHandler(form.SubmitHandlerFunc(func(context.Context, form.Submission) error { return boom })),
	)
	sub, err := f.Submit(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if sub.ID == "" {
		t.Fatal("accepted submission should still be returned")
	}
}

func TestSubmitSanitizesStrings(t *testing.T) {
	f := form.MustNew(form.MustGroup([]form.Entry{
		form.Child("name", form.NewField(form.KindString, "  ann  ")),
		form.Child("guests", form.MustArray([]form.Node{form.NewField(form.KindString, " ben ")})),
	}), form.WithStringSanitizer(strings.TrimSpace))

	sub, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := map[string]any{"name": "ann", "guests": []any{"ben"}}
	if diff := cmp.Diff(want, sub.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if got := f.Values()["name"]; got != "  ann  " {
		t.Fatalf("sanitizer changed form state: %q", got)
	}
}

func TestSubmitDisabledForm(t *testing.T) {
	root := form.MustGroup([]form.Entry{form.Child("name", form.NewField(form.KindString, ""))}, form.GroupDisabled())
	f := form.MustNew(root)
	if _, err := f.Submit(context.Background()); !errors.Is(err, form.ErrSubmitDisabled) {
		t.Fatalf("expected ErrSubmitDisabled, got %v", err)
	}
}

func TestSubscribeDeliversOneEventPerNodePerOperation(t *testing.T) {
	name := form.NewField(form.KindString, "", form.WithValidators(required(), minLength(3)))
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("name", name)}))

	var nodeEvents []form.Event
	var paths []string
	name.Subscribe(func(e form.Event) { nodeEvents = append(nodeEvents, e) })
	f.Subscribe(func(e form.Event) { paths = append(paths, e.Path) })

	if err := name.SetValue("annabel"); err != nil {
		t.Fatalf("set: %v", err)
	}

	want := []form.Event{{State: form.State{
		ID:     name.ID(),
		Path:   "name",
		Status: form.StatusValid,
		Dirty:  true,
		Value:  "annabel",
	}}}
	if diff := cmp.Diff(want, nodeEvents); diff != "" {
		t.Fatalf("node events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"name", ""}, paths); diff != "" {
		t.Fatalf("form event paths mismatch (-want +got):\n%s", diff)
	}
}

func TestObserversMayReenterInOrder(t *testing.T) {
	password := form.NewField(form.KindString, "")
	confirm := form.NewField(form.KindString, "")
	root := form.MustGroup([]form.Entry{
		form.Child("password", password),
		form.Child("confirm", confirm),
	}, form.WithGroupValidators(passwordMatch()))
	f := form.MustNew(root)

	password.Subscribe(func(e form.Event) {
		if e.Value != confirm.Value() {
			_ = confirm.SetValue(e.Value)
		}
	})
	var got []string
	f.Subscribe(func(e form.Event) { got = append(got, e.Path+"="+string(e.Status)) })

	_ = password.SetValue("secret")

	want := []string{"password=VALID", "=INVALID", "confirm=VALID", "=VALID"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
	if f.Status() != form.StatusValid {
		t.Fatalf("status = %s, want VALID", f.Status())
	}
}

func TestObserverPanicDoesNotBreakDelivery(t *testing.T) {
	name := form.NewField(form.KindString, "")
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("name", name)}))

	calls := 0
	name.Subscribe(func(form.Event) { panic("observer bug") })
	name.Subscribe(func(form.Event) { calls++ })

	_ = name.SetValue("a")
	_ = name.SetValue("b")
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if f.Status() != form.StatusValid {
		t.Fatalf("status = %s", f.Status())
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	name := form.NewField(form.KindString, "")
	form.MustNew(form.MustGroup([]form.Entry{form.Child("name", name)}))

	calls := 0
	unsubscribe := name.Subscribe(func(form.Event) { calls++ })
	_ = name.SetValue("a")
	unsubscribe()
	_ = name.SetValue("b")
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRemovedItemsAnnounceNewPaths(t *testing.T) {
	guests := form.MustArray(nil, form.WithItemKind(form.KindString))
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("guests", guests)}))
	for _, name := range []string{"a", "b", "c"} {
		_, _ = guests.Append(name)
	}

	var paths []string
	f.Subscribe(func(e form.Event) { paths = append(paths, e.Path) })
	_ = guests.RemoveAt(0)

	want := []string{"guests.0", "guests.1", "guests", ""}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	name := form.NewField(form.KindString, "ann", form.WithValidators(required()))
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("name", name)}))

	_ = name.SetValue("")
	_, _ = f.Submit(context.Background())
	if !name.Dirty() || !name.Touched() || !f.Submitted() {
		t.Fatal("precondition: interaction flags set")
	}

	f.Reset()
	if name.Value() != "ann" || name.Dirty() || name.Touched() || f.Submitted() {
		t.Fatalf("after reset: value=%v dirty=%v touched=%v submitted=%v",
			name.Value(), name.Dirty(), name.Touched(), f.Submitted())
	}
	if f.Status() != form.StatusValid || f.Root().Touched() {
		t.Fatalf("root after reset: %s touched=%v", f.Status(), f.Root().Touched())
	}
}

func TestFormPathContractViolations(t *testing.T) {
	f := form.MustNew(form.MustGroup([]form.Entry{
		form.Child("name", form.NewField(form.KindString, "")),
		form.Child("guests", form.MustArray([]form.Node{form.NewField(form.KindString, "a")})),
	}))

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{name: "append to field", run: func() error { _, err := f.Append("name", "x"); return err }, want: form.ErrNotArray},
		{name: "set array", run: func() error { return f.SetValue("guests", "x") }, want: form.ErrNotField},
		{name: "unknown", run: func() error { _, err := f.Get("missing"); return err }, want: form.ErrUnknownChild},
		{name: "bad index", run: func() error { _, err := f.Get("guests.3"); return err }, want: form.ErrIndexOutOfRange},
		{name: "non numeric index", run: func() error { _, err := f.Get("guests.first"); return err }, want: form.ErrUnknownChild},
		{name: "below field", run: func() error { _, err := f.Get("name.x"); return err }, want: form.ErrUnknownChild},
		{name: "remove out of range", run: func() error { return f.RemoveAt("guests", 2) }, want: form.ErrIndexOutOfRange},
		{name: "wrong kind", run: func() error { return f.SetValue("name", 7) }, want: form.ErrValueKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	n, err := f.Get("guests.0")
	if err != nil || n.Value() != "a" {
		t.Fatalf("get guests.0 = %v, %v", n, err)
	}
	if root, _ := f.Get(""); root != form.Node(f.Root()) {
		t.Fatal("empty path should resolve to the root")
	}
}

func TestNewRejectsOwnedRoot(t *testing.T) {
	root := form.MustGroup(nil)
	form.MustNew(root)
	if _, err := form.New(root); !errors.Is(err, form.ErrAlreadyOwned) {
		t.Fatalf("expected ErrAlreadyOwned, got %v", err)
	}
	if _, err := form.New(nil); err == nil {
		t.Fatal("expected error for nil root")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	checker := newControlledAsync()
	f := form.MustNew(form.MustGroup([]form.Entry{
		form.Child("username", form.NewField(form.KindString, "bob", form.WithAsyncValidators(checker))),
	}))
	call := checker.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	status, err := f.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) || status != form.StatusPending {
		t.Fatalf("wait = %s, %v", status, err)
	}
	call.reply <- nil
	if got := waitSettled(t, f); got != form.StatusValid {
		t.Fatalf("status = %s, want VALID", got)
	}
}

func TestCloseCancelsInFlightValidation(t *testing.T) {
	checker := newControlledAsync()
	username := form.NewField(form.KindString, "bob", form.WithAsyncValidators(checker))
	f := form.MustNew(form.MustGroup([]form.Entry{form.Child("username", username)}))
	call := checker.next(t)

	f.Close()
	if call.ctx.Err() == nil {
		t.Fatal("close should cancel in-flight validation")
	}
	if err := username.SetValue("alice"); !errors.Is(err, form.ErrDetached) {
		t.Fatalf("expected ErrDetached, got %v", err)
	}
	if _, err := f.Wait(context.Background()); !errors.Is(err, form.ErrDetached) {
		t.Fatalf("expected ErrDetached from wait, got %v", err)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, form.ErrDetached) {
		t.Fatalf("expected ErrDetached from submit, got %v", err)
	}
	call.reply <- nil
}

func TestMetricsCountValidations(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := form.NewMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	root := form.MustGroup([]form.Entry{
		form.Child("password", form.NewField(form.KindString, "", form.WithValidators(required()))),
		form.Child("confirm", form.NewField(form.KindString, "")),
	}, form.WithGroupValidators(passwordMatch()))
	f := form.MustNew(root, form.WithMetrics(metrics))

	before := testutil.ToFloat64(metrics.Validations().WithLabelValues("sync"))
	_ = f.SetValue("password", "x")
	if got := testutil.ToFloat64(metrics.Validations().WithLabelValues("sync")); got != before+1 {
		t.Fatalf("sync validations = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(metrics.Validations().WithLabelValues("group")); got < 2 {
		t.Fatalf("group validations = %v, want at least 2", got)
	}
	if _, err := form.NewMetrics(reg); err == nil {
		t.Fatal("registering twice should fail")
	}
}
