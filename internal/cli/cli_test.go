package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(Streams{Out: &stdout, Err: &stderr})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRender_FromDirectoryAndData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "views", "post.twig"), "{{ site }}|{{ title|markdown:\"inline\" }}|{{ count }}")
	writeFile(t, filepath.Join(dir, "post.yaml"), "view: post\ntitle: \"*Hello*\"\ncount: 3\n")

	out, _, err := execute(t, "",
		"render",
		"--views-dir", filepath.Join(dir, "views"),
		"--data", filepath.Join(dir, "post.yaml"),
		"--global", "site=Example",
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff("Example|<em>Hello</em>|3", out); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ConfigFileAndOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "theme", "main.twig"), "{{ content|markdown }}")
	writeFile(t, filepath.Join(dir, "site.yaml"), "viewsDir: theme\nmarkdownTrim: true\n")
	target := filepath.Join(dir, "out", "index.html")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	out, _, err := execute(t, `{"content": "# Title"}`,
		"render",
		"--config", filepath.Join(dir, "site.yaml"),
		"--data", "-",
		"--output", target,
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "" {
		t.Fatalf("stdout should be empty when writing a file, got %q", out)
	}
	written, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := string(written); got != "<h1>Title</h1>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRender_NoMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.twig"), "{{ content|markdown }}")

	_, _, err := execute(t, "", "render", "--views-dir", dir, "--no-markdown")
	if err == nil || !strings.Contains(err.Error(), "Filter 'markdown' does not exist.") {
		t.Fatalf("want unknown markdown filter, got %v", err)
	}
}

func TestRender_MissingTemplate(t *testing.T) {
	_, _, err := execute(t, "", "render", "--views-dir", t.TempDir(), "--view", "nope.twig")
	if err == nil || !strings.Contains(err.Error(), `unable to find template "nope.twig"`) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestList(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, filepath.Join(first, "main.twig"), "a")
	writeFile(t, filepath.Join(second, "main.twig"), "b")
	writeFile(t, filepath.Join(second, "partials", "nav.twig"), "nav")

	out, _, err := execute(t, "", "list", "--views-dir", first, "--views-dir", second)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header and two rows, got %q", out)
	}
	if fields := strings.Fields(lines[1]); len(fields) != 3 || fields[0] != "main.twig" || fields[1] != first || fields[2] != second {
		t.Fatalf("unexpected main.twig row %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); len(fields) != 3 || fields[0] != "partials/nav.twig" || fields[2] != "-" {
		t.Fatalf("unexpected nav row %q", lines[2])
	}

	out, _, err = execute(t, "", "list", "--views-dir", first, "--pattern", "partials/**")
	if err != nil {
		t.Fatalf("list pattern: %v", err)
	}
	if strings.TrimSpace(out) != "No templates found" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"name=Ada", "count=3", "draft=true", "empty="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{"name": "Ada", "count": 3, "draft": true, "empty": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Fatalf("expected error for missing =")
	}
}
