package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/taxdesk/filing-client/internal/api"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/service"
	"github.com/taxdesk/filing-client/internal/core/validation"
	"github.com/taxdesk/filing-client/internal/infrastructure/db/memory"
	"github.com/taxdesk/filing-client/internal/infrastructure/storage"
	"github.com/taxdesk/filing-client/internal/pkg/config"
)

const (
	adminEmail = "boss@example.com"
	password   = "secret1"
)

var confirmationPattern = regexp.MustCompile(`TAX-[0-9A-F]{8}`)

type env struct {
	open Opener
}

// newEnv starts a development backend and returns an environment whose
// command runs share one client store, like consecutive invocations on one
// machine.
func newEnv(t *testing.T) *env {
	t.Helper()
	log := zerolog.Nop()

	e := api.NewRouter(api.Dependencies{
		Filing: service.NewFilingService(memory.NewRequestRepository(), log),
		Identity: service.NewIdentityService(
			memory.NewCredentialRepository(),
			memory.NewUserRepository(),
			"cli-test-secret",
			time.Hour,
			[]string{adminEmail},
			log,
		),
		JWTSecret: "cli-test-secret",
		UploadDir: t.TempDir(),
		Pingers:   map[string]ports.Pinger{},
		Metrics:   prometheus.NewRegistry(),
		Logger:    log,
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	cfg := &config.Config{Client: config.ClientConfig{
		APIURL:      srv.URL + api.APIPrefix,
		IdentityURL: srv.URL + api.IdentityPrefix,
		Store:       config.StoreMemory,
		Timeout:     5 * time.Second,
	}}
	store, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)

	return &env{open: func(ctx context.Context) (*App, error) {
		return New(ctx, cfg, store, log)
	}}
}

func (e *env) exec(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(e.open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) mustExec(t *testing.T, input string, args ...string) string {
	t.Helper()
	out, err := e.exec(t, input, args...)
	require.NoError(t, err, out)
	return out
}

func (e *env) register(t *testing.T, name, email string) string {
	t.Helper()
	return e.mustExec(t, password+"\n"+password+"\n", "register", "--name", name, "--email", email)
}

func writePDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n% test document\n"), 0o600))
	return path
}

func (e *env) submit(t *testing.T, extra ...string) string {
	t.Helper()
	if !slices.Contains(extra, "--plan") {
		extra = append(extra, "--plan", "standard")
	}
	args := append([]string{
		"submit",
		"--full-name", "Ana Torres",
		"--ssn", "123456789",
		"--email", "ana@example.com",
		"--bank", "First Bank",
		"--account-type", "Savings",
		"--account-number", "12345678",
		"--routing-number", "021000021",
		"--payment", "card",
	}, extra...)
	out := e.mustExec(t, "", args...)
	id := confirmationPattern.FindString(out)
	require.NotEmpty(t, id, out)
	return id
}

func TestAccountCommands(t *testing.T) {
	e := newEnv(t)

	out := e.register(t, "Ana", "ana@example.com")
	require.Contains(t, out, "Account created")
	require.Contains(t, out, "Signed in as Ana <ana@example.com>")

	out = e.mustExec(t, "", "whoami")
	require.Contains(t, out, "ana@example.com")
	require.Contains(t, out, "role: user")

	require.Contains(t, e.mustExec(t, "", "logout"), "Signed out")
	require.Contains(t, e.mustExec(t, "", "whoami"), "Not signed in")

	_, err := e.exec(t, "wrong-password\n", "login", "--email", "ana@example.com")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	out = e.mustExec(t, password+"\n", "login", "--email", "ana@example.com")
	require.Contains(t, out, "Signed in as Ana")
	require.NotContains(t, out, "(admin)")

	out = e.mustExec(t, "", "reset-password", "--email", "nobody@example.com")
	require.Contains(t, out, "If an account exists for nobody@example.com")
}

func TestRegister_PasswordChecks(t *testing.T) {
	e := newEnv(t)

	_, err := e.exec(t, "secret1\nsecret2\n", "register", "--name", "Ana", "--email", "ana@example.com")
	require.EqualError(t, err, "passwords do not match")

	_, err = e.exec(t, "abc\n", "register", "--name", "Ana", "--email", "ana@example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least 6")
}

func TestLoginGoogle_ConflictListsMethods(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")
	e.mustExec(t, "", "logout")

	_, err := e.exec(t, "", "login-google", "--email", "ana@example.com", "--name", "Ana")
	require.ErrorIs(t, err, domain.ErrAccountExistsWithDifferentCredential)
	require.Contains(t, Message(err), "Sign in with password instead")

	out := e.mustExec(t, "", "login-google", "--email", "new@example.com", "--name", "Nia")
	require.Contains(t, out, "Signed in as Nia <new@example.com>")
}

func TestSubmitAndTrack(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")

	out := e.mustExec(t, "", "requests")
	require.Contains(t, out, "No requests yet")

	id := e.submit(t, "--plan", "premium", "--doc", writePDF(t, "w2.pdf"))

	out = e.mustExec(t, "", "requests", "--refresh")
	require.Contains(t, out, id)
	require.Contains(t, out, "premium")

	out = e.mustExec(t, "", "request", id)
	require.Contains(t, out, "confirmation: "+id)
	require.Contains(t, out, "plan:         premium ($120.00)")
	require.Contains(t, out, "waiting for review")
	require.Contains(t, out, "w2.pdf")
}

func TestSubmit_ValidationHappensLocally(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")

	_, err := e.exec(t, "", "submit", "--full-name", "Ana", "--ssn", "12", "--dry-run")
	var verrs *validation.Errors
	require.True(t, errors.As(err, &verrs))
	require.NotEmpty(t, verrs.Field("ssn"))
	require.Contains(t, Message(err), "Please fix the following fields:")

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain text"), 0o600))
	_, err = e.exec(t, "", "submit", "--doc", txt, "--dry-run")
	var batch *validation.BatchError
	require.True(t, errors.As(err, &batch))
	require.Equal(t, "notes.txt", batch.Rejected[0].Name)
}

func TestSubmit_DryRun(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")

	out := e.mustExec(t, "", "submit",
		"--full-name", "Ana Torres",
		"--ssn", "123-45-6789",
		"--email", "ana@example.com",
		"--bank", "First Bank",
		"--account-number", "12345678",
		"--routing-number", "021000021",
		"--payment", "card",
		"--plan", "standard",
		"--dry-run",
	)
	require.Contains(t, out, "Form is valid: standard plan, $60.00, 0 document(s)")
	require.Contains(t, e.mustExec(t, "", "requests"), "No requests yet")
}

func TestSubmit_PlanMustBeChosen(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")

	_, err := e.exec(t, "", "submit",
		"--full-name", "Ana Torres",
		"--ssn", "123-45-6789",
		"--email", "ana@example.com",
		"--bank", "First Bank",
		"--account-number", "12345678",
		"--routing-number", "021000021",
		"--payment", "card",
		"--dry-run",
	)
	var verrs *validation.Errors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	require.NotEmpty(t, verrs.Field("serviceLevel"))
	require.Contains(t, Message(err), "serviceLevel: choose a plan")
}

func TestAdminCommands(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")
	id := e.submit(t)

	_, err := e.exec(t, "", "admin", "list")
	require.ErrorIs(t, err, domain.ErrForbidden)

	e.mustExec(t, "", "logout")
	require.Contains(t, e.register(t, "Boss", adminEmail), "(admin)")

	require.Contains(t, e.mustExec(t, "", "admin", "verify"), "Admin access confirmed")

	out := e.mustExec(t, "", "admin", "list", "--search", "ana")
	require.Contains(t, out, id)
	require.Contains(t, out, "page 1 of 1, 1 matching")
	require.Contains(t, out, "all: 1 | Pendiente: 1")

	out = e.mustExec(t, "", "admin", "list", "--status", string(domain.AdminStatusCompleted))
	require.Contains(t, out, "No requests match")

	_, err = e.exec(t, "", "admin", "list", "--status", "Bogus")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = e.exec(t, "", "admin", "status", id, "--status", string(domain.AdminStatusPaymentScheduled), "--comment", "soon")
	var verrs *validation.Errors
	require.True(t, errors.As(err, &verrs))
	require.NotEmpty(t, verrs.Field("paymentDate"))

	out = e.mustExec(t, "", "admin", "status", id, "--status", string(domain.AdminStatusInProgress), "--comment", "reviewing")
	require.Contains(t, out, id+" is now En proceso")

	out = e.mustExec(t, "", "admin", "note", id, "called", "the", "client")
	require.Contains(t, out, "(1 notes)")
	require.Contains(t, e.mustExec(t, "", "request", id), "called the client")

	out = e.mustExec(t, "", "admin", "stats")
	require.Contains(t, out, "total requests")
	require.Contains(t, out, "En proceso")
	require.Contains(t, out, "$60.00")

	_, err = e.exec(t, "TAX-WRONG\n", "admin", "delete", id)
	require.ErrorIs(t, err, domain.ErrConfirmationMismatch)

	_, err = e.exec(t, " "+id+" \n", "admin", "delete", id)
	require.ErrorIs(t, err, domain.ErrConfirmationMismatch)

	out = e.mustExec(t, id+"\n", "admin", "delete", id)
	require.Contains(t, out, "Deleted "+id)

	out = e.mustExec(t, "", "admin", "list")
	require.Contains(t, out, "No requests match")
}

func TestAdminBrowse(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")
	id := e.submit(t)
	e.mustExec(t, "", "logout")
	e.register(t, "Boss", adminEmail)

	input := strings.Join([]string{
		"status " + string(domain.AdminStatusCompleted),
		"status all",
		"page x",
		"frobnicate",
		"q",
		"status never-reached",
	}, "\n") + "\n"
	out := e.mustExec(t, input, "admin", "browse")

	require.Contains(t, out, id)
	require.Contains(t, out, "No requests match")
	require.Contains(t, out, "page must be a number")
	require.Contains(t, out, `unknown command "frobnicate"`)
	require.NotContains(t, out, "never-reached")
}

func TestAdminBrowse_Search(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")
	id := e.submit(t)
	e.mustExec(t, "", "logout")
	e.register(t, "Boss", adminEmail)

	out := e.mustExec(t, "/zzz-nobody\nq\n", "admin", "browse")

	require.Contains(t, out, id)
	require.Contains(t, out, "No requests match")
}

func TestDoctor(t *testing.T) {
	e := newEnv(t)

	out := e.mustExec(t, "", "doctor")
	require.Regexp(t, `api\s+ok`, out)
	require.Regexp(t, `store\s+ok`, out)
	require.Contains(t, out, "signed out")
}

func TestMessage(t *testing.T) {
	errs := &validation.Errors{}
	errs.Add("routingNumber", "must be 9 to 12 digits")
	errs.Add("fullName", "is required")

	require.Equal(t,
		"Please fix the following fields:\n  fullName: is required\n  routingNumber: must be 9 to 12 digits",
		Message(errs))
	require.Equal(t, domain.NetworkMessage, Message(&domain.APIError{Message: domain.NetworkMessage}))
}

func TestRequest_OwnerDoesNotSeeAdminNotes(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")
	id := e.submit(t)
	e.mustExec(t, "", "logout")

	e.register(t, "Boss", adminEmail)
	e.mustExec(t, "", "admin", "note", id, "suspected", "duplicate")
	e.mustExec(t, "", "logout")

	e.mustExec(t, password+"\n", "login", "--email", "ana@example.com")
	out := e.mustExec(t, "", "request", id)
	require.Contains(t, out, "confirmation: "+id)
	require.NotContains(t, out, "suspected duplicate")
	require.NotContains(t, out, "notes:")
}
