package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/sessiongate/internal/rate"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/redis/go-redis/v9"
)

// ErrClosed is returned for calls made after Namespace.Close.
var ErrClosed = errors.New("identity: namespace closed")

// Op names an actor operation in observer callbacks.
type Op string

// Actor operations.
const (
	OpSignup  Op = "signup"
	OpLogin   Op = "login"
	OpVerify  Op = "verify"
	OpRefresh Op = "refresh"
	OpGet     Op = "get"
	OpSet     Op = "set"
)

// Observer receives runtime events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ActorSpawned()
	ActorRetired()
	CallFinished(op Op, took time.Duration, err error)
}

// Deps are the collaborators shared by every actor of a Namespace.
type Deps struct {
	Redis    redis.UniversalClient
	Tokens   *jwt.Manager
	Hasher   *password.Hasher
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

// Namespace spawns and addresses identity actors.
type Namespace struct {
	config  Config
	store   *Store
	tokens  *jwt.Manager
	hasher  *password.Hasher
	limiter *rate.Limiter
	logger  *slog.Logger
	obs     Observer
	now     func() time.Time

	mu      sync.Mutex
	actors  map[string]*mailbox
	closed  bool
	running sync.WaitGroup
}

// NewNamespace validates cfg and returns a Namespace ready to serve calls.
func NewNamespace(cfg Config, deps Deps) (*Namespace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Redis == nil {
		return nil, errors.New("identity: redis client is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("identity: token manager is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("identity: password hasher is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Namespace{
		config:  cfg,
		store:   NewStore(deps.Redis, cfg.KeyPrefix),
		tokens:  deps.Tokens,
		hasher:  deps.Hasher,
		limiter: rate.New(deps.Redis, cfg.KeyPrefix, cfg.LoginLimit),
		logger:  deps.Logger,
		obs:     deps.Observer,
		now:     deps.Now,
		actors:  make(map[string]*mailbox),
	}, nil
}

// Actor returns the actor addressed by the normalized form of email.
func (n *Namespace) Actor(email string) Actor {
	return &proxy{ns: n, email: NormalizeEmail(email)}
}

// Store exposes the backing store for health checks.
func (n *Namespace) Store() *Store {
	return n.store
}

// Live returns the number of running actors.
func (n *Namespace) Live() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.actors)
}

// Close stops every actor and waits for them to drain. Pending calls fail
// with ErrClosed.
func (n *Namespace) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	for email, mb := range n.actors {
		close(mb.stop)
		delete(n.actors, email)
	}
	n.mu.Unlock()

	n.running.Wait()
}

type job struct {
	ctx   context.Context
	run   func(ctx context.Context)
	abort func(err error)
}

// mailbox is the single goroutine owning one identity.
type mailbox struct {
	state   *actorState
	inbox   chan job
	stop    chan struct{}
	exited  chan struct{}
	pending int
}

// acquire returns the live mailbox for email, spawning it when needed. The
// caller must release it once its job is enqueued or abandoned.
func (n *Namespace) acquire(email string) (*mailbox, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}
	mb, ok := n.actors[email]
	if !ok {
		mb = &mailbox{
			state:  &actorState{ns: n, email: email},
			inbox:  make(chan job, n.config.MailboxSize),
			stop:   make(chan struct{}),
			exited: make(chan struct{}),
		}
		n.actors[email] = mb
		n.running.Add(1)
		go n.loop(mb)
		if n.obs != nil {
			n.obs.ActorSpawned()
		}
	}
	mb.pending++
	return mb, nil
}

func (n *Namespace) release(mb *mailbox) {
	n.mu.Lock()
	mb.pending--
	n.mu.Unlock()
}

// retire removes mb when nobody is about to enqueue and its inbox is empty.
func (n *Namespace) retire(mb *mailbox) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if mb.pending > 0 || len(mb.inbox) > 0 {
		return false
	}
	if cur, ok := n.actors[mb.state.email]; ok && cur == mb {
		delete(n.actors, mb.state.email)
	}
	return true
}

func (n *Namespace) loop(mb *mailbox) {
	defer n.running.Done()
	defer close(mb.exited)

	idle := time.NewTimer(n.config.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case j := <-mb.inbox:
			if err := j.ctx.Err(); err != nil {
				j.abort(err)
			} else {
				n.runJob(mb, j)
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(n.config.IdleTimeout)
		case <-idle.C:
			if n.retire(mb) {
				if n.obs != nil {
					n.obs.ActorRetired()
				}
				return
			}
			idle.Reset(n.config.IdleTimeout)
		case <-mb.stop:
			for {
				select {
				case j := <-mb.inbox:
					j.abort(ErrClosed)
				default:
					if n.obs != nil {
						n.obs.ActorRetired()
					}
					return
				}
			}
		}
	}
}

func (n *Namespace) runJob(mb *mailbox, j job) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("identity actor panic", "email", mb.state.email, "panic", r)
			j.abort(errActorPanic)
		}
	}()
	j.run(j.ctx)
}

var errActorPanic = errors.New("identity: actor panicked")

// call runs fn on the actor for email and waits for its result within the
// configured call timeout.
func call[T any](ctx context.Context, n *Namespace, email string, op Op, fn func(ctx context.Context, s *actorState) (T, error)) (T, error) {
	start := time.Now()
	res, err := dispatch(ctx, n, email, fn)
	if n.obs != nil {
		n.obs.CallFinished(op, time.Since(start), err)
	}
	return res, err
}

type reply[T any] struct {
	val T
	err error
}

func dispatch[T any](ctx context.Context, n *Namespace, email string, fn func(ctx context.Context, s *actorState) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, n.config.CallTimeout)
	defer cancel()

	mb, err := n.acquire(email)
	if err != nil {
		return zero, err
	}

	out := make(chan reply[T], 1)
	j := job{
		ctx: ctx,
		run: func(ctx context.Context) {
			v, err := fn(ctx, mb.state)
			out <- reply[T]{val: v, err: err}
		},
		abort: func(err error) {
			select {
			case out <- reply[T]{err: err}:
			default:
			}
		},
	}

	select {
	case mb.inbox <- j:
		n.release(mb)
	case <-mb.exited:
		n.release(mb)
		return zero, ErrClosed
	case <-ctx.Done():
		n.release(mb)
		return zero, ctx.Err()
	}

	select {
	case r := <-out:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-mb.exited:
		select {
		case r := <-out:
			return r.val, r.err
		default:
			return zero, ErrClosed
		}
	}
}

// proxy is the Actor handle returned by Namespace.Actor.
type proxy struct {
	ns    *Namespace
	email string
}

func (p *proxy) Signup(ctx context.Context, email, password string) (Grant, error) {
	return call(ctx, p.ns, p.email, OpSignup, func(ctx context.Context, s *actorState) (Grant, error) {
		return s.signup(ctx, email, password)
	})
}

func (p *proxy) Login(ctx context.Context, email, password string) (Grant, error) {
	return call(ctx, p.ns, p.email, OpLogin, func(ctx context.Context, s *actorState) (Grant, error) {
		return s.login(ctx, email, password)
	})
}

func (p *proxy) VerifyToken(ctx context.Context, token string) (Verification, error) {
	return call(ctx, p.ns, p.email, OpVerify, func(ctx context.Context, s *actorState) (Verification, error) {
		return s.verify(ctx, token)
	})
}

func (p *proxy) RefreshToken(ctx context.Context, refreshToken string) (Refreshed, error) {
	return call(ctx, p.ns, p.email, OpRefresh, func(ctx context.Context, s *actorState) (Refreshed, error) {
		return s.refresh(ctx, refreshToken)
	})
}

func (p *proxy) Get(ctx context.Context, key string) (string, bool, error) {
	type found struct {
		value string
		ok    bool
	}
	res, err := call(ctx, p.ns, p.email, OpGet, func(ctx context.Context, s *actorState) (found, error) {
		v, ok, err := s.get(ctx, key)
		return found{value: v, ok: ok}, err
	})
	return res.value, res.ok, err
}

func (p *proxy) Set(ctx context.Context, key, value string) (SetResult, error) {
	return call(ctx, p.ns, p.email, OpSet, func(ctx context.Context, s *actorState) (SetResult, error) {
		return s.set(ctx, key, value)
	})
}
