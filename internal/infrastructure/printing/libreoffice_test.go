package printing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sofficeFake writes <name>.pdf into --outdir for --convert-to calls
func sofficeFake(c Command) ([]byte, error) {
	for i, a := range c.Args {
		if a == "--outdir" && i+2 < len(c.Args) {
			src := c.Args[len(c.Args)-1]
			base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
			return nil, os.WriteFile(filepath.Join(c.Args[i+1], base+".pdf"), []byte("%PDF-1.7"), 0o600)
		}
	}
	return nil, nil
}

func newTestBridge(t *testing.T, runner CommandRunner) *LibreOfficeBridge {
	t.Helper()
	b, err := NewLibreOfficeBridge(&LibreOfficeConfig{
		BinaryPath:  "/opt/libreoffice/program/soffice",
		ProfileRoot: t.TempDir(),
	}, runner)
	require.NoError(t, err)
	return b
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("office"), 0o600))
	return p
}

func TestLibreOfficeSession_PrintDocument(t *testing.T) {
	runner := &fakeRunner{}
	bridge := newTestBridge(t, runner)
	ctx := context.Background()
	src := writeSource(t, "letter.docx")

	session, err := bridge.NewSession(ctx)
	require.NoError(t, err)
	profile := session.(*LibreOfficeSession).Profile()

	doc, err := session.OpenDocument(ctx, src)
	require.NoError(t, err)
	require.NoError(t, session.SetActiveDevice(ctx, doc, "Office-MFP"))
	require.NoError(t, session.PrintDocument(ctx, doc))
	require.NoError(t, session.CloseDocument(ctx, doc))
	require.NoError(t, session.Quit(ctx))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/opt/libreoffice/program/soffice", calls[0].Binary)
	assert.Equal(t, []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless", "--invisible", "--norestore", "--nolockcheck",
		"--pt", "Office-MFP", src,
	}, calls[0].Args)

	_, err = os.Stat(profile)
	assert.True(t, os.IsNotExist(err))
}

func TestLibreOfficeSession_PrintWithoutDeviceUsesDefault(t *testing.T) {
	runner := &fakeRunner{}
	bridge := newTestBridge(t, runner)
	ctx := context.Background()

	session, err := bridge.NewSession(ctx)
	require.NoError(t, err)
	defer session.Quit(ctx)

	doc, err := session.OpenDocument(ctx, writeSource(t, "budget.xlsx"))
	require.NoError(t, err)
	require.NoError(t, session.PrintDocument(ctx, doc))

	args := runner.Calls()[0].Args
	assert.Equal(t, "-p", args[len(args)-2])
}

func TestLibreOfficeSession_ExportToPaginated(t *testing.T) {
	runner := &fakeRunner{handle: sofficeFake}
	bridge := newTestBridge(t, runner)
	ctx := context.Background()

	session, err := bridge.NewSession(ctx)
	require.NoError(t, err)
	doc, err := session.OpenDocument(ctx, writeSource(t, "deck.pptx"))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export.pdf")
	require.NoError(t, session.ExportToPaginated(ctx, doc, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	require.NoError(t, session.CloseDocument(ctx, doc))
	require.NoError(t, session.Quit(ctx))
}

func TestLibreOfficeSession_ExportProducesNothing(t *testing.T) {
	bridge := newTestBridge(t, &fakeRunner{})
	ctx := context.Background()

	session, err := bridge.NewSession(ctx)
	require.NoError(t, err)
	defer session.Quit(ctx)
	doc, err := session.OpenDocument(ctx, writeSource(t, "deck.ppt"))
	require.NoError(t, err)

	err = session.ExportToPaginated(ctx, doc, filepath.Join(t.TempDir(), "x.pdf"))
	require.Error(t, err)
	var be *BoundaryError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeCommandFailed, be.Code)
}

func TestLibreOfficeSession_Errors(t *testing.T) {
	runner := &fakeRunner{handle: func(Command) ([]byte, error) {
		return nil, errors.New("soffice crashed")
	}}
	bridge := newTestBridge(t, runner)
	ctx := context.Background()

	session, err := bridge.NewSession(ctx)
	require.NoError(t, err)

	_, err = session.OpenDocument(ctx, filepath.Join(t.TempDir(), "missing.docx"))
	assert.Error(t, err)

	doc, err := session.OpenDocument(ctx, writeSource(t, "letter.doc"))
	require.NoError(t, err)
	assert.EqualError(t, session.PrintDocument(ctx, doc), "soffice crashed")

	require.NoError(t, session.CloseDocument(ctx, doc))
	require.NoError(t, session.CloseDocument(ctx, doc))
	assert.Error(t, session.SetActiveDevice(ctx, doc, "x"))

	require.NoError(t, session.Quit(ctx))
	require.NoError(t, session.Quit(ctx))
	_, err = session.OpenDocument(ctx, writeSource(t, "late.doc"))
	assert.Error(t, err)
}

func TestLibreOfficeBridge_SessionsAreIsolated(t *testing.T) {
	bridge := newTestBridge(t, &fakeRunner{})
	ctx := context.Background()

	var mu sync.Mutex
	profiles := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := bridge.NewSession(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			profiles[s.(*LibreOfficeSession).Profile()] = true
			mu.Unlock()
			assert.NoError(t, s.Quit(ctx))
		}()
	}
	wg.Wait()
	assert.Len(t, profiles, 4)
}

func TestNewLibreOfficeBridge_BinaryNotFound(t *testing.T) {
	_, err := NewLibreOfficeBridge(&LibreOfficeConfig{BinaryPath: "/nonexistent/soffice"}, nil)
	require.Error(t, err)
	var be *BoundaryError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeBinaryNotFound, be.Code)
}
