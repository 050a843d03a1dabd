package core

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type SessionState int32

const (
	SessionGenerated SessionState = iota
	SessionPolling
	SessionAuthorized
	SessionCancelled
)

func (s SessionState) String() string {
	switch s {
	case SessionGenerated:
		return "generated"
	case SessionPolling:
		return "polling"
	case SessionAuthorized:
		return "authorized"
	case SessionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s SessionState) Terminal() bool {
	return s == SessionAuthorized || s == SessionCancelled
}

// UserToken is the raw grant returned once the user approves the session.
type UserToken struct {
	AccessToken string
	User        Value
}

type CheckStatus int

const (
	CheckPending CheckStatus = iota + 1
	CheckResolved
)

func (s CheckStatus) String() string {
	switch s {
	case CheckPending:
		return "pending"
	case CheckResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// CheckResult is the outcome of one authorization check. Protocol failures
// are reported through the accompanying error, never as a result.
type CheckResult struct {
	Status CheckStatus
	Token  UserToken
	// Reason holds the service's "error" payload while pending.
	Reason Value
}

func (r CheckResult) Resolved() bool {
	return r.Status == CheckResolved
}

// AuthorizationSession is one in-flight user authorization attempt. Its
// fields never change; only the lifecycle state advances.
type AuthorizationSession struct {
	Application Application
	Token       string
	URL         string

	service *Service
	state   atomic.Int32
}

func newAuthorizationSession(service *Service, app Application, token string, url string) (*AuthorizationSession, error) {
	token = strings.TrimSpace(token)
	url = strings.TrimSpace(url)
	if token == "" || url == "" {
		missing := []any{}
		if token == "" {
			missing = append(missing, "token")
		}
		if url == "" {
			missing = append(missing, "url")
		}
		return nil, NewProtocolError("core: session response is incomplete", map[string]any{
			"host":    app.Host,
			"missing": missing,
		})
	}
	session := &AuthorizationSession{
		Application: app,
		Token:       token,
		URL:         url,
		service:     service,
	}
	session.state.Store(int32(SessionGenerated))
	return session, nil
}

// RestoreSession resumes polling for a session generated earlier, for
// example by another process.
func (s *Service) RestoreSession(app Application, token string, url string) (*AuthorizationSession, error) {
	if err := app.Validate(); err != nil {
		return nil, s.mapError(err)
	}
	session, err := newAuthorizationSession(s, app, token, url)
	if err != nil {
		return nil, s.mapError(NewBadInputError("core: session token and url are required"))
	}
	return session, nil
}

func (s *Service) GenerateSession(ctx context.Context, app Application) (session *AuthorizationSession, err error) {
	fields := map[string]any{
		"host":     app.Host,
		"endpoint": EndpointSessionGenerate,
	}
	op := s.startOperation(ctx, opGenerateSession, fields)
	defer func() { op.finish(err) }()

	if err = app.Validate(); err != nil {
		err = s.mapError(err)
		return nil, err
	}

	res, err := s.Dispatch(ctx, Request{
		Host:     app.Host,
		Endpoint: EndpointSessionGenerate,
		Params:   Params{P("appSecret", app.Secret)},
	})
	if err != nil {
		return nil, err
	}

	obj, decodeErr := res.Body.Object()
	if decodeErr != nil {
		err = s.mapError(WrapProtocolError(decodeErr, "core: session response is not a json object", fields))
		return nil, err
	}
	token, _ := stringMember(obj, "token")
	url, _ := stringMember(obj, "url")
	session, err = newAuthorizationSession(s, app, token, url)
	if err != nil {
		var rich *goerrors.Error
		if remote := remoteErrorFields(res.Body); len(remote) > 0 && goerrors.As(err, &rich) {
			rich.WithMetadata(remote)
		}
		err = s.mapError(err)
		return nil, err
	}
	fields["token_fingerprint"] = Fingerprint(token)
	return session, nil
}

func (a *AuthorizationSession) State() SessionState {
	if a == nil {
		return SessionCancelled
	}
	return SessionState(a.state.Load())
}

// CheckAuthorization issues a single check. It refuses to run once the
// session reached a terminal state.
func (a *AuthorizationSession) CheckAuthorization(ctx context.Context) (CheckResult, error) {
	if a == nil || a.service == nil {
		return CheckResult{}, newInternalError("core: session is not bound to a service")
	}
	if state := a.State(); state.Terminal() {
		return CheckResult{}, a.service.mapError(newSessionStateError("core: session can no longer be polled", state))
	}
	return a.checkAuthorization(ctx)
}

func (a *AuthorizationSession) checkAuthorization(ctx context.Context) (CheckResult, error) {
	svc := a.service
	res, err := svc.Dispatch(ctx, Request{
		Host:     a.Application.Host,
		Endpoint: EndpointSessionUserKey,
		Params: Params{
			P("appSecret", a.Application.Secret),
			P("token", a.Token),
		},
	})
	if err != nil {
		return CheckResult{}, err
	}
	if res.StatusCode >= 500 {
		fields := mergeFields(remoteErrorFields(res.Body), map[string]any{
			"host":        a.Application.Host,
			"endpoint":    EndpointSessionUserKey,
			"status_code": res.StatusCode,
		})
		return CheckResult{}, svc.mapError(NewProtocolError("core: authorization check failed on the remote side", fields))
	}
	result, err := parseCheckResponse(res.Body)
	if err != nil {
		return CheckResult{}, svc.mapError(err)
	}
	if result.Status == CheckPending {
		svc.log(ctx, levelDebug, "authorization pending", map[string]any{
			"host":              a.Application.Host,
			"token_fingerprint": Fingerprint(a.Token),
			"reason":            result.Reason.String(),
		})
	}
	return result, nil
}

func parseCheckResponse(body Value) (CheckResult, error) {
	obj, err := body.Object()
	if err != nil {
		return CheckResult{}, WrapProtocolError(err, "core: authorization check response is not a json object", nil)
	}
	if truthyMember(obj, "error") {
		return CheckResult{Status: CheckPending, Reason: Value(obj["error"])}, nil
	}
	accessToken, ok := stringMember(obj, "accessToken")
	if !ok {
		return CheckResult{}, NewProtocolError("core: authorization check response is missing accessToken", nil)
	}
	user := Value(json.RawMessage("null"))
	if raw, exists := obj["user"]; exists {
		user = Value(raw)
	}
	return CheckResult{
		Status: CheckResolved,
		Token:  UserToken{AccessToken: accessToken, User: user},
	}, nil
}

// WaitForAuthorization polls until the user approves the session, ctx is
// done, or a protocol error occurs. There is no attempt limit. ctx is checked
// before every check and before every sleep; a protocol error returns the
// session to the generated state so the wait can be resumed.
func (a *AuthorizationSession) WaitForAuthorization(ctx context.Context) (account *Account, err error) {
	if a == nil || a.service == nil {
		return nil, newInternalError("core: session is not bound to a service")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	svc := a.service
	attempts := 0
	fields := map[string]any{
		"host":              a.Application.Host,
		"endpoint":          EndpointSessionUserKey,
		"token_fingerprint": Fingerprint(a.Token),
	}
	op := svc.startOperation(ctx, opWaitForAuthorization, fields)
	defer func() {
		fields["attempts"] = attempts
		fields["session_state"] = a.State().String()
		op.finish(err)
	}()

	if !a.state.CompareAndSwap(int32(SessionGenerated), int32(SessionPolling)) {
		err = svc.mapError(newSessionStateError("core: session is not available for polling", a.State()))
		return nil, err
	}

	interval := svc.pollInterval()
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, a.cancel(ctxErr, fields)
		}
		attempts++
		result, checkErr := a.checkAuthorization(ctx)
		if checkErr != nil {
			if IsCancelled(checkErr) || ctx.Err() != nil {
				return nil, a.cancel(ctx.Err(), fields)
			}
			if wait, throttled := throttleWait(checkErr, interval); throttled {
				svc.log(ctx, levelWarn, "authorization check throttled", mergeFields(fields, map[string]any{
					"attempt": attempts,
					"wait_ms": wait.Milliseconds(),
				}))
				if sleepErr := svc.sleeper.Sleep(ctx, wait); sleepErr != nil {
					return nil, a.cancel(sleepErr, fields)
				}
				continue
			}
			a.state.Store(int32(SessionGenerated))
			return nil, checkErr
		}
		if result.Resolved() {
			account = newAccount(svc, a.Application, result.Token.AccessToken)
			a.state.Store(int32(SessionAuthorized))
			return account, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, a.cancel(ctxErr, fields)
		}
		if sleepErr := svc.sleeper.Sleep(ctx, interval); sleepErr != nil {
			return nil, a.cancel(sleepErr, fields)
		}
	}
}

// throttleWait reports whether err is a rate limit rejection and how long to
// wait before the next check. The wait is never shorter than interval.
func throttleWait(err error, interval time.Duration) (time.Duration, bool) {
	if !hasTextCode(err, ErrorRateLimited) {
		return 0, false
	}
	wait := interval
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		var retry time.Duration
		switch v := rich.Metadata["retry_after_ms"].(type) {
		case int64:
			retry = time.Duration(v) * time.Millisecond
		case int:
			retry = time.Duration(v) * time.Millisecond
		case float64:
			retry = time.Duration(v * float64(time.Millisecond))
		}
		if retry > wait {
			wait = retry
		}
	}
	return wait, true
}

func (a *AuthorizationSession) cancel(cause error, fields map[string]any) error {
	a.state.Store(int32(SessionCancelled))
	return NewCancelledError(cause, fields)
}
