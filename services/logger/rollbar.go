package logsvc

import (
	"log"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	rollbarErrors "github.com/rollbar/rollbar-go/errors"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
)

// RollbarLogger reports to Rollbar and echoes every entry to std.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(rollbarErrors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName, "api_base_url": conf.API.BaseURL})
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is one log call split the way rollbar wants it.
type entry struct {
	args   []interface{} // msg first, then errors and anything rollbar understands
	user   *session.UserProfile
	custom map[string]interface{}
}

// newEntry sorts the args of a log call.
// Rollbar keeps a single extras map per item, so every map, the credential scope and
// the details of a failed API call are merged into custom.
func newEntry(msg string, args []interface{}) entry {
	e := entry{args: make([]interface{}, 0, len(args)+2), custom: map[string]interface{}{}}
	e.args = append(e.args, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case session.UserProfile:
			if e.user == nil { // only set one user
				usr := a
				e.user = &usr
			}
		case session.ScopeID:
			e.custom["credential_scope"] = string(a)
		case map[string]interface{}:
			for k, v := range a {
				e.custom[k] = v
			}
		case error:
			var apiErr *learnapi.Error
			if errors.As(a, &apiErr) {
				e.custom["api_op"] = apiErr.Op
				e.custom["api_kind"] = apiErr.Kind.String()
				if apiErr.Status != 0 {
					e.custom["api_status"] = apiErr.Status
				}
			}
			e.args = append(e.args, a)
		default:
			e.args = append(e.args, arg)
		}
	}
	return e
}

func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	e := newEntry(msg, args)
	if e.user != nil {
		rollbar.SetPerson(e.user.ID.String(), e.user.Name, e.user.Email)
	} else {
		rollbar.ClearPerson()
	}
	if len(e.custom) > 0 {
		e.args = append(e.args, e.custom)
	}
	return e.args
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		if scope, ok := arg.(session.ScopeID); ok {
			l.std.Printf("scope=%s\n", scope)
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.print(msg, args)
	l.std.Fatal(msg)
}
