package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/internal/testutil"
)

const contactJSON = `{"name": "contact", "components": [{"type": "email", "key": "email"}]}`

const surveyYAML = `
components:
  - type: radio
    key: rating
    validate:
      required: true
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.json", contactJSON)
	testutil.WriteFile(t, dir, "survey.yml", surveyYAML)
	testutil.WriteFile(t, dir, "notes.txt", "ignored")

	c, err := Load(dir, nil)
	testutil.AssertNoError(t, err)

	names := c.Names()
	if len(names) != 2 || names[0] != "contact" || names[1] != "survey" {
		t.Fatalf("names = %v", names)
	}
	s, ok := c.Get("survey")
	if !ok || len(s.Components) != 1 || s.Components[0].Key != "rating" {
		t.Errorf("survey = %+v", s)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("a form is addressed by its own name when it has one")
	}
}

func TestReloadKeepsLastGood(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "contact.json", contactJSON)

	c, err := Load(dir, nil)
	testutil.AssertNoError(t, err)

	testutil.WriteFile(t, dir, "contact.json", `{"components": [`)
	err = c.Reload()
	testutil.AssertError(t, err, fserr.ErrSchemaInvalid)
	testutil.AssertErrorContains(t, err, path)
	if _, ok := c.Get("contact"); !ok {
		t.Error("broken file must keep its previous version")
	}

	testutil.AssertNoError(t, os.Remove(path))
	testutil.AssertNoError(t, c.Reload())
	if len(c.Names()) != 0 {
		t.Errorf("removed form still listed: %v", c.Names())
	}
}

func TestDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.json", contactJSON)
	testutil.WriteFile(t, dir, "b.json", contactJSON)

	_, err := Load(dir, nil)
	testutil.AssertErrorContains(t, err, "defined twice")
}

func TestMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), nil)
	testutil.AssertError(t, err, fserr.ErrConfigInvalid)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir, nil)
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(names []string, err error) { reloaded <- names })
	}()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)
	testutil.WriteFile(t, dir, "contact.json", contactJSON)

	select {
	case names := <-reloaded:
		if len(names) != 1 || names[0] != "contact" {
			t.Errorf("names after reload = %v", names)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after writing a form")
	}

	cancel()
	select {
	case err := <-done:
		testutil.AssertNoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}
