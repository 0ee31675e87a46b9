package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshbot/internal/remote"
	"sshbot/internal/remote/remotetest"
)

type sentFile struct {
	chatID  int64
	logPath string
	content string
	name    string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentFile
	err  error
}

func (r *recordingSender) SendLog(_ context.Context, chatID int64, filePath, logPath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentFile{chatID: chatID, logPath: logPath, content: string(data), name: filePath})
	return r.err
}

func newTestEngine(t *testing.T, exec remote.Executor) (*Engine, *recordingSender, string) {
	t.Helper()
	dir := t.TempDir()
	files := &recordingSender{}
	return NewEngine(exec, files, dir, nil), files, dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged files left behind")
}

func TestRestartServiceHappyPath(t *testing.T) {
	exec := remotetest.New().On("systemctl restart", remotetest.OK("OK"))
	e, _, _ := newTestEngine(t, exec)

	e.Begin(1, 10, RestartService)
	reply, err := e.Submit(context.Background(), 1, "  nginx ")
	require.NoError(t, err)
	assert.Equal(t, AwaitingConfirmation, reply.Session.Stage)
	assert.Equal(t, "nginx", reply.Session.Payload.Service)
	assert.Nil(t, reply.Outcome)

	out, err := e.Confirm(context.Background(), 1, RestartService)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "nginx", out.Target)
	assert.Equal(t, []string{"sudo systemctl restart 'nginx' && echo 'OK'"}, exec.Commands())

	_, ok := e.Current(1)
	assert.False(t, ok, "session should be destroyed after Terminal")
}

func TestRestartWithoutSentinelReportsRawOutput(t *testing.T) {
	exec := remotetest.New().On("systemctl restart", remotetest.Stderr("Failed to restart foo.service: Unit foo.service not found."))
	e, _, _ := newTestEngine(t, exec)

	e.Begin(1, 10, RestartService)
	_, err := e.Submit(context.Background(), 1, "foo")
	require.NoError(t, err)
	out, err := e.Confirm(context.Background(), 1, RestartService)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Contains(t, out.Output, "Unit foo.service not found")
}

func TestRestartEmptyNameReprompts(t *testing.T) {
	e, _, _ := newTestEngine(t, remotetest.New())
	e.Begin(1, 10, RestartService)

	_, err := e.Submit(context.Background(), 1, "   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	s, ok := e.Current(1)
	require.True(t, ok)
	assert.Equal(t, Prompting, s.Stage)
}

func TestKillProcessValidation(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"1234", true},
		{" 42 ", false},
		{" 42", false},
		{"42\n", false},
		{"\t7", false},
		{"12a4", false},
		{"-1", false},
		{"", false},
		{"12 34", false},
		{"١٢", false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			exec := remotetest.New()
			e, _, _ := newTestEngine(t, exec)
			e.Begin(1, 10, KillProcess)

			reply, err := e.Submit(context.Background(), 1, tc.in)
			s, ok := e.Current(1)
			require.True(t, ok, "session must persist after input")
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, AwaitingConfirmation, s.Stage)
				assert.Equal(t, reply.Session.Payload.PID, s.Payload.PID)
			} else {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, Prompting, s.Stage)
			}
			assert.Empty(t, exec.Commands(), "no command before confirmation")
		})
	}
}

func TestKillProcessRetryAfterInvalid(t *testing.T) {
	exec := remotetest.New().On("kill 1234", remotetest.OK("OK"))
	e, _, _ := newTestEngine(t, exec)
	e.Begin(1, 10, KillProcess)

	_, err := e.Submit(context.Background(), 1, "abc")
	require.Error(t, err)
	_, err = e.Submit(context.Background(), 1, "1234")
	require.NoError(t, err)

	out, err := e.Confirm(context.Background(), 1, KillProcess)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, []string{"kill 1234 && echo 'OK'"}, exec.Commands())
}

func TestSecondSessionReplacesFirst(t *testing.T) {
	e, _, _ := newTestEngine(t, remotetest.New())

	_, replaced := e.Begin(1, 10, RestartService)
	assert.False(t, replaced)
	_, err := e.Submit(context.Background(), 1, "nginx")
	require.NoError(t, err)

	s, replaced := e.Begin(1, 10, KillProcess)
	assert.True(t, replaced)
	assert.Equal(t, KillProcess, s.Flow)
	assert.Equal(t, 1, e.Active())

	_, err = e.Confirm(context.Background(), 1, RestartService)
	assert.ErrorIs(t, err, ErrStale)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	e, _, _ := newTestEngine(t, remotetest.New())
	e.Begin(1, 10, RestartService)
	e.Begin(2, 20, KillProcess)

	a, _ := e.Current(1)
	b, _ := e.Current(2)
	assert.Equal(t, RestartService, a.Flow)
	assert.Equal(t, KillProcess, b.Flow)
	assert.Equal(t, 2, e.Active())
}

func TestConfirmWithoutSessionOrWrongStage(t *testing.T) {
	e, _, _ := newTestEngine(t, remotetest.New())

	_, err := e.Confirm(context.Background(), 1, KillProcess)
	assert.ErrorIs(t, err, ErrNoSession)

	e.Begin(1, 10, KillProcess)
	_, err = e.Confirm(context.Background(), 1, KillProcess)
	assert.ErrorIs(t, err, ErrStale)
}

func TestSubmitOutsidePrompting(t *testing.T) {
	e, _, _ := newTestEngine(t, remotetest.New())

	_, err := e.Submit(context.Background(), 1, "nginx")
	assert.ErrorIs(t, err, ErrNoSession)

	e.Begin(1, 10, RestartService)
	_, err = e.Submit(context.Background(), 1, "nginx")
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), 1, "apache2")
	assert.ErrorIs(t, err, ErrNotPrompting)

	s, _ := e.Current(1)
	assert.Equal(t, "nginx", s.Payload.Service)
}

func TestCancelDiscardsSession(t *testing.T) {
	exec := remotetest.New()
	e, _, _ := newTestEngine(t, exec)
	e.Begin(1, 10, RestartService)
	_, err := e.Submit(context.Background(), 1, "nginx")
	require.NoError(t, err)

	assert.True(t, e.Cancel(1))
	assert.False(t, e.Cancel(1))

	_, err = e.Confirm(context.Background(), 1, RestartService)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, exec.Commands())
}

func TestConcurrentConfirmRunsOnce(t *testing.T) {
	exec := remotetest.New().On("systemctl", remotetest.OK("OK"))
	e, _, _ := newTestEngine(t, exec)
	e.Begin(1, 10, RestartService)
	_, err := e.Submit(context.Background(), 1, "nginx")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Confirm(context.Background(), 1, RestartService); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, exec.Count("systemctl"))
}

type gatedExecutor struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedExecutor) Execute(context.Context, string) remote.Result {
	close(g.started)
	<-g.release
	return remote.Result{Stdout: "OK"}
}

func TestFinishingOldFlowKeepsReplacement(t *testing.T) {
	g := &gatedExecutor{started: make(chan struct{}), release: make(chan struct{})}
	e, _, _ := newTestEngine(t, g)
	e.Begin(1, 10, RestartService)
	_, err := e.Submit(context.Background(), 1, "nginx")
	require.NoError(t, err)

	done := make(chan Outcome)
	go func() {
		out, _ := e.Confirm(context.Background(), 1, RestartService)
		done <- out
	}()

	<-g.started
	e.Begin(1, 10, KillProcess)
	close(g.release)
	out := <-done
	assert.True(t, out.OK)

	s, ok := e.Current(1)
	require.True(t, ok)
	assert.Equal(t, KillProcess, s.Flow)
	assert.Equal(t, Prompting, s.Stage)
}

func TestRetrieveLogFlowDelivers(t *testing.T) {
	exec := remotetest.New().On("tail -n 50", remotetest.OK("line1\nline2"))
	e, files, dir := newTestEngine(t, exec)
	e.Begin(1, 10, RetrieveLog)

	reply, err := e.Submit(context.Background(), 1, "50 /var/log/syslog")
	require.NoError(t, err)
	require.NotNil(t, reply.Outcome)
	assert.True(t, reply.Outcome.OK)
	assert.Equal(t, Terminal, reply.Session.Stage)
	assert.Equal(t, []string{"tail -n 50 '/var/log/syslog'"}, exec.Commands())

	require.Len(t, files.sent, 1)
	assert.Equal(t, int64(10), files.sent[0].chatID)
	assert.Equal(t, "/var/log/syslog", files.sent[0].logPath)
	assert.Equal(t, "line1\nline2\n", files.sent[0].content)
	assert.Contains(t, files.sent[0].name, "syslog_")
	assertDirEmpty(t, dir)

	_, ok := e.Current(1)
	assert.False(t, ok)
}

func TestRetrieveLogEmptyOutput(t *testing.T) {
	exec := remotetest.New().On("tail", remotetest.OK(""))
	e, files, dir := newTestEngine(t, exec)

	out := e.RetrieveLog(context.Background(), 10, LogRequest{Path: "/var/log/empty.log", Lines: DefaultLogLines})
	assert.False(t, out.OK)
	assert.NotEmpty(t, out.Output)
	assert.Empty(t, files.sent)
	assertDirEmpty(t, dir)
}

func TestRetrieveLogFailures(t *testing.T) {
	cases := []struct {
		name string
		res  remote.Result
	}{
		{"missing file", remotetest.Stderr("tail: cannot open '/x' for reading: No such file or directory")},
		{"marker on stdout", remotetest.OK("tail: cannot open '/x' for reading: Permission denied")},
		{"bridge fault", remotetest.Fault("dial tcp: i/o timeout")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := remotetest.New().On("tail", tc.res)
			e, files, dir := newTestEngine(t, exec)

			out := e.RetrieveLog(context.Background(), 10, LogRequest{Path: "/x", Lines: 10})
			assert.False(t, out.OK)
			assert.NotEmpty(t, out.Output)
			assert.Empty(t, files.sent)
			assertDirEmpty(t, dir)
		})
	}
}

func TestRetrieveLogKeepsContentMentioningErrors(t *testing.T) {
	exec := remotetest.New().On("tail", remotetest.OK("sshd: Permission denied (publickey)"))
	e, files, _ := newTestEngine(t, exec)

	out := e.RetrieveLog(context.Background(), 10, LogRequest{Path: "/var/log/auth.log", Lines: 10})
	assert.True(t, out.OK)
	assert.Len(t, files.sent, 1)
}

func TestRetrieveLogDeliveryFailureRemovesFile(t *testing.T) {
	exec := remotetest.New().On("tail", remotetest.OK("data"))
	e, files, dir := newTestEngine(t, exec)
	files.err = errors.New("telegram: request entity too large")

	out := e.RetrieveLog(context.Background(), 10, LogRequest{Path: "/var/log/big.log", Lines: 10})
	assert.False(t, out.OK)
	assert.Contains(t, out.Output, "request entity too large")
	assertDirEmpty(t, dir)
}

func TestParseLogRequest(t *testing.T) {
	cases := []struct {
		in      string
		want    LogRequest
		wantErr bool
	}{
		{"/var/log/syslog", LogRequest{Path: "/var/log/syslog", Lines: 200}, false},
		{"100 /var/log/syslog", LogRequest{Path: "/var/log/syslog", Lines: 100}, false},
		{"  20   /tmp/my file.log ", LogRequest{Path: "/tmp/my file.log", Lines: 20}, false},
		{"", LogRequest{}, true},
		{"100", LogRequest{}, true},
		{"0 /var/log/syslog", LogRequest{}, true},
		{"5001 /var/log/syslog", LogRequest{}, true},
	}

	for _, tc := range cases {
		got, err := ParseLogRequest(tc.in)
		if tc.wantErr {
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestRetrieveLogFlowInvalidInputStaysPrompting(t *testing.T) {
	exec := remotetest.New()
	e, _, _ := newTestEngine(t, exec)
	e.Begin(1, 10, RetrieveLog)

	_, err := e.Submit(context.Background(), 1, "9999 /var/log/syslog")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	s, ok := e.Current(1)
	require.True(t, ok)
	assert.Equal(t, Prompting, s.Stage)
	assert.Empty(t, exec.Commands())
}
