package cooldown

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// clock is a manual clock and timer source.
type clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	r := !t.stopped && !t.fired
	t.stopped = true
	return r
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) AfterFunc(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires due timers.
func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !c.now.Before(t.at) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers which are neither stopped nor fired.
func (c *clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func testTracker() (*Tracker, *clock) {
	c := &clock{now: time.Unix(1700000000, 0)}
	t := New()
	t.now = c.Now
	t.afterFunc = c.AfterFunc
	return t, c
}

var ban = Spec{Time: 20 * time.Second, Scope: User}

func TestSubject(t *testing.T) {
	guild := Origin{User: "1", Channel: "2", Guild: "3"}
	dm := Origin{User: "1", Channel: "2"}
	cases := []struct {
		name  string
		o     Origin
		scope Scope
		want  string
	}{
		{"user-guild", guild, User, "1"},
		{"user-dm", dm, User, "1"},
		{"channel-guild", guild, Channel, "2"},
		{"channel-dm", dm, Channel, "2"},
		{"guild-guild", guild, Guild, "3"},
		{"guild-dm", dm, Guild, "1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.o.Subject(c.scope)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("wrong subject: want %q, got %q", c.want, got)
			}
		})
	}
}

func TestSubjectInvalid(t *testing.T) {
	for _, s := range []Scope{"", "server", "USER"} {
		_, err := Origin{User: "1", Channel: "2", Guild: "3"}.Subject(s)
		if !errors.Is(err, ErrInvalidScope) {
			t.Errorf("scope %q: want ErrInvalidScope, got %v", s, err)
		}
		var se *InvalidScopeError
		if !errors.As(err, &se) || se.Scope != s {
			t.Errorf("scope %q: wrong error detail %#v", s, err)
		}
	}
}

func TestParseScope(t *testing.T) {
	for _, s := range []string{"user", "channel", "guild"} {
		got, err := ParseScope(s)
		if err != nil || string(got) != s {
			t.Errorf("ParseScope(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseScope("everywhere"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("ParseScope accepted everywhere: %v", err)
	}
}

func TestCheckEmpty(t *testing.T) {
	tr, _ := testTracker()
	r := tr.Check("42", "ban")
	if diff := cmp.Diff(Result{Allowed: true}, r); diff != "" {
		t.Errorf("wrong result on empty tracker (-want +got):\n%s", diff)
	}
	if tr.Len() != 0 {
		t.Errorf("check added entries")
	}
}

func TestNotifyOnce(t *testing.T) {
	tr, c := testTracker()
	if _, err := tr.Add(Origin{User: "42"}, "ban", ban, Override{}); err != nil {
		t.Fatal(err)
	}
	c.Advance(5 * time.Second)
	want := []Result{
		{Notify: true, Remaining: 15 * time.Second},
		{Remaining: 15 * time.Second},
		{Remaining: 15 * time.Second},
		{Remaining: 15 * time.Second},
	}
	var got []Result
	for range want {
		got = append(got, tr.Check("42", "ban"))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong results (-want +got):\n%s", diff)
	}
}

func TestNotifyOnceConcurrent(t *testing.T) {
	tr, _ := testTracker()
	if _, err := tr.Add(Origin{User: "42"}, "ban", ban, Override{}); err != nil {
		t.Fatal(err)
	}
	var notified, allowed atomic.Int64
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := tr.Check("42", "ban")
			if r.Notify {
				notified.Add(1)
			}
			if r.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := notified.Load(); n != 1 {
		t.Errorf("wrong number of notifications: want 1, got %d", n)
	}
	if n := allowed.Load(); n != 0 {
		t.Errorf("checks allowed during cooldown: %d", n)
	}
}

func TestSingleEntryPerKey(t *testing.T) {
	tr, c := testTracker()
	o := Origin{User: "42", Channel: "7", Guild: "9"}
	for range 5 {
		if _, err := tr.Add(o, "ban", ban, Override{}); err != nil {
			t.Fatal(err)
		}
		c.Advance(time.Second)
	}
	if n := tr.Len(); n != 1 {
		t.Errorf("wrong number of entries: want 1, got %d", n)
	}
	if n := c.Pending(); n != 1 {
		t.Errorf("replaced entries left timers running: %d pending", n)
	}
	e, ok := tr.Lookup("42", "ban")
	if !ok {
		t.Fatal("no entry")
	}
	// The last add happened at +4s.
	if want := time.Unix(1700000000, 0).Add(24 * time.Second); !e.Expires.Equal(want) {
		t.Errorf("wrong expiry: want %v, got %v", want, e.Expires)
	}
}

func TestReplacedTimerDoesNotRemoveNewer(t *testing.T) {
	tr, c := testTracker()
	o := Origin{User: "42"}
	tr.Add(o, "ban", ban, Override{})
	first := c.timers[0]
	c.Advance(10 * time.Second)
	tr.Add(o, "ban", ban, Override{})
	// Simulate the old timer firing anyway, as time.Timer.Stop allows.
	first.f()
	if _, ok := tr.Lookup("42", "ban"); !ok {
		t.Errorf("stale expiry removed the replacement entry")
	}
}

func TestExpiry(t *testing.T) {
	tr, c := testTracker()
	spec := Spec{Time: 100 * time.Millisecond, Scope: User}
	tr.Add(Origin{User: "42"}, "ping", spec, Override{})
	c.Advance(99 * time.Millisecond)
	if r := tr.Check("42", "ping"); r.Allowed {
		t.Errorf("allowed before expiry")
	}
	c.Advance(time.Millisecond)
	if r := tr.Check("42", "ping"); !r.Allowed {
		t.Errorf("not allowed at expiry")
	}
	if n := tr.Len(); n != 0 {
		t.Errorf("expired entry remains: %d entries", n)
	}
}

func TestLazyReap(t *testing.T) {
	tr, c := testTracker()
	tr.Add(Origin{User: "42"}, "ping", Spec{Time: time.Second, Scope: User}, Override{})
	// Move time without firing timers.
	c.mu.Lock()
	c.now = c.now.Add(2 * time.Second)
	c.mu.Unlock()
	if r := tr.Check("42", "ping"); !r.Allowed {
		t.Errorf("expired entry not reaped on check")
	}
	if n := c.Pending(); n != 0 {
		t.Errorf("reaped entry left its timer running")
	}
}

func TestActive(t *testing.T) {
	tr, c := testTracker()
	tr.Add(Origin{User: "42"}, "ping", Spec{Time: time.Second, Scope: User}, Override{})
	tr.Add(Origin{User: "42"}, "ban", ban, Override{})
	if n := tr.Active(); n != 2 {
		t.Errorf("wrong active count: want 2, got %d", n)
	}
	// Move time without firing timers. The expired entry is still registered
	// but no longer active.
	c.mu.Lock()
	c.now = c.now.Add(2 * time.Second)
	c.mu.Unlock()
	if n := tr.Len(); n != 2 {
		t.Errorf("wrong registered count: want 2, got %d", n)
	}
	if n := tr.Active(); n != 1 {
		t.Errorf("wrong active count after expiry: want 1, got %d", n)
	}
	c.Advance(20 * time.Second)
	if n := tr.Active(); n != 0 {
		t.Errorf("wrong active count after all expired: want 0, got %d", n)
	}
}

func TestExpiryRealTimer(t *testing.T) {
	tr := New()
	defer tr.Close()
	start := time.Now()
	tr.Add(Origin{User: "42"}, "ping", Spec{Time: 50 * time.Millisecond, Scope: User}, Override{})
	if r := tr.Check("42", "ping"); r.Allowed && time.Since(start) < 50*time.Millisecond {
		t.Errorf("allowed immediately after add")
	}
	deadline := time.Now().Add(5 * time.Second)
	for tr.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry never expired")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if r := tr.Check("42", "ping"); !r.Allowed {
		t.Errorf("not allowed after expiry")
	}
}

func TestSharedBucket(t *testing.T) {
	tr, _ := testTracker()
	kick := Spec{Time: 20 * time.Second, Scope: User}
	k, err := tr.Add(Origin{User: "42"}, "ban", ban, Override{Name: "moderation", Time: 20 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if want := (Key{Subject: "42", Name: "moderation"}); k != want {
		t.Errorf("wrong key: want %v, got %v", want, k)
	}
	// A kick handler sharing the bucket is gated immediately.
	if r := tr.Check("42", Spec{Name: "moderation"}.Bucket("kick")); r.Allowed {
		t.Errorf("kick allowed under shared moderation bucket")
	}
	// Its own name is irrelevant.
	if r := tr.Check("42", kick.Bucket("kick")); !r.Allowed {
		t.Errorf("kick gated under its own name")
	}
	if r := tr.Check("42", "ban"); !r.Allowed {
		t.Errorf("ban gated under its own name")
	}
}

func TestAddDefaults(t *testing.T) {
	o := Origin{User: "u", Channel: "c", Guild: "g"}
	cases := []struct {
		name string
		def  Spec
		ov   Override
		want Key
		exp  time.Duration
	}{
		{"own", Spec{Time: time.Second, Scope: User}, Override{}, Key{"u", "cmd"}, time.Second},
		{"spec-name", Spec{Time: time.Second, Scope: Channel, Name: "image"}, Override{}, Key{"c", "image"}, time.Second},
		{"override-name", Spec{Time: time.Second, Scope: User, Name: "image"}, Override{Name: "x"}, Key{"u", "x"}, time.Second},
		{"override-time", Spec{Time: time.Second, Scope: User}, Override{Time: time.Minute}, Key{"u", "cmd"}, time.Minute},
		{"override-scope", Spec{Time: time.Second, Scope: User}, Override{Scope: Guild}, Key{"g", "cmd"}, time.Second},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, clk := testTracker()
			k, err := tr.Add(o, "cmd", c.def, c.ov)
			if err != nil {
				t.Fatal(err)
			}
			if k != c.want {
				t.Errorf("wrong key: want %v, got %v", c.want, k)
			}
			e, ok := tr.Lookup(k.Subject, k.Name)
			if !ok {
				t.Fatal("no entry")
			}
			if got := e.Expires.Sub(clk.Now()); got != c.exp {
				t.Errorf("wrong duration: want %v, got %v", c.exp, got)
			}
		})
	}
}

func TestAddInvalidScope(t *testing.T) {
	tr, _ := testTracker()
	_, err := tr.Add(Origin{User: "u"}, "cmd", Spec{Time: time.Second, Scope: "galaxy"}, Override{})
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("want ErrInvalidScope, got %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("invalid add registered an entry")
	}
}

func TestAddNoTime(t *testing.T) {
	tr, _ := testTracker()
	if _, err := tr.Add(Origin{User: "u"}, "cmd", Spec{Scope: User}, Override{}); err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 0 {
		t.Errorf("zero-length cooldown registered")
	}
}

func TestReset(t *testing.T) {
	tr, c := testTracker()
	o := Origin{User: "42", Channel: "7"}
	tr.Add(o, "ban", ban, Override{})
	tr.Add(o, "kick", ban, Override{})
	tr.Add(o, "joke", Spec{Time: time.Second, Scope: Channel}, Override{})
	if !tr.Reset("42", "ban") {
		t.Errorf("reset found nothing")
	}
	if tr.Reset("42", "ban") {
		t.Errorf("second reset found something")
	}
	if r := tr.Check("42", "ban"); !r.Allowed {
		t.Errorf("reset cooldown still gates")
	}
	// Expiry after reset is a no-op.
	c.Advance(time.Minute)
	if tr.Len() != 0 {
		t.Errorf("entries remain after expiry: %d", tr.Len())
	}
}

func TestResetSubject(t *testing.T) {
	tr, c := testTracker()
	o := Origin{User: "42", Channel: "7"}
	tr.Add(o, "ban", ban, Override{})
	tr.Add(o, "kick", ban, Override{})
	tr.Add(o, "joke", Spec{Time: time.Second, Scope: Channel}, Override{})
	if n := tr.ResetSubject("42"); n != 2 {
		t.Errorf("wrong number reset: want 2, got %d", n)
	}
	if n := tr.Len(); n != 1 {
		t.Errorf("wrong number remaining: want 1, got %d", n)
	}
	if n := c.Pending(); n != 1 {
		t.Errorf("reset left timers: %d pending", n)
	}
}

func TestClose(t *testing.T) {
	tr, c := testTracker()
	tr.Add(Origin{User: "1"}, "a", ban, Override{})
	tr.Add(Origin{User: "2"}, "a", ban, Override{})
	tr.Close()
	if tr.Len() != 0 || c.Pending() != 0 {
		t.Errorf("close left %d entries and %d timers", tr.Len(), c.Pending())
	}
}

func TestLookupDoesNotNotify(t *testing.T) {
	tr, _ := testTracker()
	tr.Add(Origin{User: "42"}, "ban", ban, Override{})
	e, ok := tr.Lookup("42", "ban")
	if !ok || e.Notified {
		t.Errorf("wrong lookup: %+v %t", e, ok)
	}
	if r := tr.Check("42", "ban"); !r.Notify {
		t.Errorf("lookup consumed the notification")
	}
	e, _ = tr.Lookup("42", "ban")
	if !e.Notified {
		t.Errorf("lookup doesn't show notification")
	}
}
