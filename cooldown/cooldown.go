// Package cooldown gates repeated command invocations per user, channel, or
// guild with timed expiry.
package cooldown

import (
	"cmp"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Scope is the dimension by which a cooldown subject is derived from an
// invocation.
type Scope string

const (
	User    Scope = "user"
	Channel Scope = "channel"
	Guild   Scope = "guild"
)

// ErrInvalidScope is matched by every [*InvalidScopeError].
var ErrInvalidScope = errors.New("cooldown scope must be user, channel, or guild")

// InvalidScopeError is the error returned when a cooldown names a scope other
// than user, channel, or guild. It indicates a misconfigured command rather
// than anything a user did.
type InvalidScopeError struct {
	Scope Scope
}

func (err *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid cooldown scope %q: must be user, channel, or guild", string(err.Scope))
}

func (err *InvalidScopeError) Is(target error) bool {
	return target == ErrInvalidScope
}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case User, Channel, Guild:
		return sc, nil
	default:
		return "", &InvalidScopeError{Scope: sc}
	}
}

// Origin identifies where an invocation happened.
type Origin struct {
	// User is the ID of the invoking user.
	User string
	// Channel is the ID of the channel of the invocation.
	Channel string
	// Guild is the ID of the guild of the invocation.
	// It is empty for private messages.
	Guild string
}

// Subject resolves the identifier a cooldown of the given scope is tracked
// against. Guild scope falls back to the user outside of guilds.
func (o Origin) Subject(s Scope) (string, error) {
	switch s {
	case User:
		return o.User, nil
	case Channel:
		return o.Channel, nil
	case Guild:
		if o.Guild != "" {
			return o.Guild, nil
		}
		return o.User, nil
	default:
		return "", &InvalidScopeError{Scope: s}
	}
}

// Spec is the cooldown a command declares for itself.
type Spec struct {
	// Time is the length of the cooldown. Non-positive means no cooldown.
	Time time.Duration
	// Scope selects the subject of the cooldown.
	Scope Scope
	// Name is the name of a bucket shared with other commands.
	// If empty, the command's own name is the bucket.
	Name string
}

// Bucket returns the name under which the spec gates the named command.
func (s Spec) Bucket(command string) string {
	return cmp.Or(s.Name, command)
}

// Override replaces parts of a command's [Spec] when adding a cooldown.
// Zero fields keep the command's own values.
type Override struct {
	Name  string
	Time  time.Duration
	Scope Scope
}

// Key identifies a cooldown entry.
type Key struct {
	Subject string
	Name    string
}

// Entry is a view of an active cooldown.
type Entry struct {
	Key
	// Expires is the time at which the cooldown ends.
	Expires time.Time
	// Notified is whether the subject has been told about the cooldown.
	Notified bool
}

type entry struct {
	expires  time.Time
	notified bool
	timer    stopper
}

type stopper interface {
	Stop() bool
}

// Tracker is a registry of active cooldowns.
// Its methods are safe to call concurrently.
type Tracker struct {
	mu sync.Mutex
	m  map[Key]*entry

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		m:   make(map[Key]*entry),
		now: time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Result is the outcome of checking a cooldown.
type Result struct {
	// Allowed is true when no cooldown is active.
	Allowed bool
	// Notify is true for exactly one check during each active cooldown.
	// The caller should tell the subject about the cooldown when it is set.
	Notify bool
	// Remaining is the time until the cooldown expires.
	// It may be negative if the cooldown is just expiring.
	Remaining time.Duration
}

// Check reports whether an invocation by subject is allowed under the named
// bucket. The first check to observe an active cooldown marks it notified.
func (t *Tracker) Check(subject, name string) Result {
	k := Key{Subject: subject, Name: name}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.m[k]
	if e == nil {
		return Result{Allowed: true}
	}
	if !now.Before(e.expires) {
		// The timer hasn't fired yet. Reap it now so the gate releases on time.
		t.removeLocked(k, e)
		return Result{Allowed: true}
	}
	r := Result{Remaining: e.expires.Sub(now)}
	if !e.notified {
		e.notified = true
		r.Notify = true
	}
	return r
}

// Add registers a cooldown for an invocation of the named command, which
// declares its cooldown as def. An existing cooldown on the same key is
// replaced. The returned key is the one registered; if the resulting duration
// is not positive, nothing is registered.
func (t *Tracker) Add(o Origin, command string, def Spec, ov Override) (Key, error) {
	scope := cmp.Or(ov.Scope, def.Scope)
	subject, err := o.Subject(scope)
	if err != nil {
		return Key{}, err
	}
	k := Key{Subject: subject, Name: cmp.Or(ov.Name, def.Name, command)}
	d := cmp.Or(ov.Time, def.Time)
	if d <= 0 {
		return k, nil
	}
	e := &entry{expires: t.now().Add(d)}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old := t.m[k]; old != nil {
		old.timer.Stop()
	}
	t.m[k] = e
	e.timer = t.afterFunc(d, func() { t.expire(k, e) })
	return k, nil
}

// expire removes e if it is still the entry for k.
func (t *Tracker) expire(k Key, e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m[k] == e {
		delete(t.m, k)
	}
}

// removeLocked removes an entry and stops its timer.
// The tracker's mutex must be held.
func (t *Tracker) removeLocked(k Key, e *entry) {
	delete(t.m, k)
	if e.timer != nil {
		e.timer.Stop()
	}
}

// Reset clears a single cooldown. It returns false if none was active.
func (t *Tracker) Reset(subject, name string) bool {
	k := Key{Subject: subject, Name: name}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.m[k]
	if e == nil {
		return false
	}
	t.removeLocked(k, e)
	return true
}

// ResetSubject clears every cooldown on a subject and returns the number
// cleared.
func (t *Tracker) ResetSubject(subject string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.m {
		if k.Subject != subject {
			continue
		}
		t.removeLocked(k, e)
		n++
	}
	return n
}

// Lookup returns the active cooldown for a key without marking it notified.
func (t *Tracker) Lookup(subject, name string) (Entry, bool) {
	k := Key{Subject: subject, Name: name}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.m[k]
	if e == nil || !now.Before(e.expires) {
		return Entry{}, false
	}
	return Entry{Key: k, Expires: e.expires, Notified: e.notified}, true
}

// Len returns the number of registered cooldowns, including any expired ones
// awaiting removal.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// Active returns the number of cooldowns which have not yet expired.
func (t *Tracker) Active() int {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.m {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

// Close stops all expiry timers and clears the registry.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.m {
		t.removeLocked(k, e)
	}
}
