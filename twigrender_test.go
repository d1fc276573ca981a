package twigrender_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-twigrender"
	"github.com/goliatone/go-twigrender/pkg/callable"
	"github.com/goliatone/go-twigrender/pkg/loader"
	"github.com/goliatone/go-twigrender/pkg/markdown"
	"github.com/goliatone/go-twigrender/pkg/render/template"
	"github.com/goliatone/go-twigrender/pkg/render/template/pongo"
)

func build(t *testing.T, cfg twigrender.Config) twigrender.RenderFunc {
	t.Helper()

	render, err := twigrender.Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return render
}

func mustRender(t *testing.T, render twigrender.RenderFunc, data map[string]any) string {
	t.Helper()

	out, err := render(context.Background(), data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out
}

func TestBuild_Rendering(t *testing.T) {
	wrap := func(_ context.Context, args ...any) (any, error) {
		return fmt.Sprintf("__%v__", args[0]), nil
	}

	cases := []struct {
		name string
		cfg  twigrender.Config
		data map[string]any
		want string
	}{
		{
			name: "views",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": "{{ content }} template"}},
			data: map[string]any{"content": "foo"},
			want: "foo template",
		},
		{
			name: "filesystem",
			cfg:  twigrender.Config{ViewsDir: []string{"testdata/views1"}},
			data: map[string]any{"content": "foo"},
			want: "hello world!\nfoo\n",
		},
		{
			name: "multiple roots",
			cfg:  twigrender.Config{ViewsDir: []string{"testdata/views2/dir1", "testdata/views2/dir2"}},
			data: map[string]any{"content": "foo"},
			want: "__*foo*__",
		},
		{
			name: "view from data",
			cfg:  twigrender.Config{Views: map[string]string{"entrypoint.twig": "{{ content }}"}},
			data: map[string]any{"content": "foo bar", "view": "entrypoint"},
			want: "foo bar",
		},
		{
			name: "static view",
			cfg: twigrender.Config{
				View:  twigrender.StaticView("page.twig"),
				Views: map[string]string{"page.twig": "page {{ content }}", "main.twig": "main"},
			},
			data: map[string]any{"content": "x", "view": "main"},
			want: "page x",
		},
		{
			name: "view function",
			cfg: twigrender.Config{
				View: twigrender.ViewFunc(func(data map[string]any) string {
					return fmt.Sprintf("%v.html.twig", data["layout"])
				}),
				Views: map[string]string{"post.html.twig": "post"},
			},
			data: map[string]any{"layout": "post"},
			want: "post",
		},
		{
			name: "autoescape",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": "{{ content }} template"}},
			data: map[string]any{"content": "<foo>"},
			want: "&lt;foo&gt; template",
		},
		{
			name: "markdown",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": "{{ content|markdown }}"}},
			data: map[string]any{"content": "# foo"},
			want: "<h1>foo</h1>\n",
		},
		{
			name: "markdown trim",
			cfg: twigrender.Config{
				Views:        map[string]string{"main.twig": "[{{ content|markdown }}]"},
				MarkdownTrim: true,
			},
			data: map[string]any{"content": "# foo"},
			want: "[<h1>foo</h1>]",
		},
		{
			name: "markdown non-text input",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": "a{{ content|markdown }}b{{ undefined_variable|markdown }}c"}},
			data: map[string]any{"content": map[string]any{}},
			want: "a<p>map[]</p>\nbc",
		},
		{
			name: "markdown base options",
			cfg: twigrender.Config{
				Views:           map[string]string{"main.twig": "{{ content|markdown }}"},
				MarkdownOptions: &markdown.Options{GFM: false},
			},
			data: map[string]any{"content": "~~Hi~~ Hello, ~there~ world!"},
			want: "<p>~~Hi~~ Hello, ~there~ world!</p>\n",
		},
		{
			name: "markdown options from template",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": `{{ content|markdown:"gfm=false" }}`}},
			data: map[string]any{"content": "~~Hi~~ Hello, ~there~ world!"},
			want: "<p>~~Hi~~ Hello, ~there~ world!</p>\n",
		},
		{
			name: "markdown options from data",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": `{{ content|markdown:opts }}`}},
			data: map[string]any{"content": "foo", "opts": map[string]any{"inline": true}},
			want: "foo",
		},
		{
			name: "markdown inline",
			cfg:  twigrender.Config{Views: map[string]string{"main.twig": `{{ content|markdown:"inline" }}`}},
			data: map[string]any{"content": "foo"},
			want: "foo",
		},
		{
			name: "filters",
			cfg: twigrender.Config{
				Views:   map[string]string{"main.twig": "{{ content|my_filter }}"},
				Filters: map[string]callable.Callable{"my_filter": callable.Sync(wrap)},
			},
			data: map[string]any{"content": "foo bar"},
			want: "__foo bar__",
		},
		{
			name: "async filters",
			cfg: twigrender.Config{
				Views: map[string]string{"main.twig": "{{ content|my_filter }}"},
				Filters: map[string]callable.Callable{"my_filter": callable.Async(func(ctx context.Context, args ...any) *callable.Future {
					return callable.Go(func() (any, error) { return wrap(ctx, args...) })
				})},
			},
			data: map[string]any{"content": "foo bar"},
			want: "__foo bar__",
		},
		{
			name: "filters with unescaped output",
			cfg: twigrender.Config{
				Views: map[string]string{"main.twig": "{{ content|my_filter }}"},
				Filters: map[string]callable.Callable{"my_filter": callable.Sync(func(_ context.Context, args ...any) (any, error) {
					return callable.Markup(fmt.Sprintf("__%v__", args[0])), nil
				})},
			},
			data: map[string]any{"content": "<foo>"},
			want: "__<foo>__",
		},
		{
			name: "functions",
			cfg: twigrender.Config{
				Views:     map[string]string{"main.twig": "{{ my_function(content) }}"},
				Functions: map[string]callable.Callable{"my_function": callable.Sync(wrap)},
			},
			data: map[string]any{"content": "foo bar"},
			want: "__foo bar__",
		},
		{
			name: "functions with unescaped output",
			cfg: twigrender.Config{
				Views:     map[string]string{"main.twig": "{{ my_function(content) }}"},
				Functions: map[string]callable.Callable{"my_function": callable.Sync(wrap, callable.WithSafeOutput())},
			},
			data: map[string]any{"content": "<foo>"},
			want: "__<foo>__",
		},
		{
			name: "globals",
			cfg: twigrender.Config{
				Globals: map[string]any{"content": "abc", "hello": "world"},
				Views:   map[string]string{"main.twig": "{{ content }} template {{ hello }}"},
			},
			data: map[string]any{"content": "foo"},
			want: "foo template world",
		},
		{
			name: "configure number format",
			cfg: twigrender.Config{
				Views: map[string]string{"main.twig": "{{ content|number_format }}"},
				Configure: func(env template.Environment) error {
					env.SetNumberFormat(template.NumberFormat{Decimals: 2, DecimalPoint: ",", ThousandSeparator: " "})
					return nil
				},
			},
			data: map[string]any{"content": 123456.789},
			want: "123 456,79",
		},
		{
			name: "configure overrides markdown",
			cfg: twigrender.Config{
				Views: map[string]string{"main.twig": "{{ content|markdown }}"},
				Configure: func(env template.Environment) error {
					return env.AddFilter("markdown", callable.Sync(func(_ context.Context, args ...any) (any, error) {
						return strings.ToUpper(fmt.Sprint(args[0])), nil
					}))
				},
			},
			data: map[string]any{"content": "# foo"},
			want: "# FOO",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mustRender(t, build(t, tc.cfg), tc.data)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("render mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuild_FirstRootWithFileWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	if err := os.WriteFile(filepath.Join(dirB, "main.twig"), []byte("B"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	render := build(t, twigrender.Config{ViewsDir: []string{dirA, dirB}})
	if got := mustRender(t, render, nil); got != "B" {
		t.Fatalf("want B, got %q", got)
	}

	if err := os.WriteFile(filepath.Join(dirA, "main.twig"), []byte("A"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if got := mustRender(t, render, nil); got != "A" {
		t.Fatalf("templates are read per render; want A, got %q", got)
	}
}

func TestBuild_MarkdownDisabled(t *testing.T) {
	render := build(t, twigrender.Config{
		MarkdownDisabled: true,
		Views:            map[string]string{"main.twig": "{{ content|markdown }}"},
	})

	_, err := render(context.Background(), map[string]any{"content": "# foo"})
	name, ok := pongo.UnknownFilterName(err)
	if !ok || name != "markdown" {
		t.Fatalf("want unknown filter markdown, got %v", err)
	}
}

func TestBuild_MarkdownDisabledAfterEnabledRenderer(t *testing.T) {
	views := map[string]string{"main.twig": "{% if false %}{{ content|markdown }}{% endif %}ok"}

	enabled := build(t, twigrender.Config{Views: views})
	if got := mustRender(t, enabled, map[string]any{"content": "# foo"}); got != "ok" {
		t.Fatalf("enabled renderer: got %q", got)
	}

	disabled := build(t, twigrender.Config{Views: views, MarkdownDisabled: true})
	_, err := disabled(context.Background(), map[string]any{"content": "# foo"})
	name, ok := pongo.UnknownFilterName(err)
	if !ok || name != "markdown" {
		t.Fatalf("want unknown filter markdown even in an unreached branch, got %v", err)
	}
}

func TestBuild_TemplateNotFound(t *testing.T) {
	render := build(t, twigrender.Config{
		View:     twigrender.StaticView("missing.twig"),
		ViewsDir: []string{"testdata/views2/dir1", "testdata/views2/dir2"},
	})

	_, err := render(context.Background(), map[string]any{"content": "# foo"})
	if !errors.Is(err, loader.ErrTemplateNotFound) {
		t.Fatalf("want template not found, got %v", err)
	}
	var notFound *loader.NotFoundError
	if !errors.As(err, &notFound) || notFound.Name != "missing.twig" {
		t.Fatalf("want not found error naming missing.twig, got %v", err)
	}
	if !notFound.Clean() {
		t.Fatalf("expected clean miss, got faults %v", notFound.Faults)
	}
}

func TestBuild_UserFailurePropagates(t *testing.T) {
	sentinel := errors.New("upstream unavailable")
	render := build(t, twigrender.Config{
		Views: map[string]string{"main.twig": "{{ fetch() }}"},
		Functions: map[string]callable.Callable{
			"fetch": callable.Async(func(context.Context, ...any) *callable.Future {
				return callable.Go(func() (any, error) { return nil, sentinel })
			}),
		},
	})

	_, err := render(context.Background(), nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("want sentinel, got %v", err)
	}
}

func TestBuild_RendererIsolation(t *testing.T) {
	views := map[string]string{"main.twig": "{{ content|markdown }}"}
	gfm := build(t, twigrender.Config{Views: views})
	plain := build(t, twigrender.Config{Views: views, MarkdownOptions: &markdown.Options{GFM: false}})
	disabled := build(t, twigrender.Config{Views: views, MarkdownDisabled: true})

	data := map[string]any{"content": "~~Hi~~"}
	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			out, err := gfm(context.Background(), data)
			if err != nil || out != "<p><del>Hi</del></p>\n" {
				errs <- fmt.Errorf("gfm: %q %v", out, err)
			}
		}()
		go func() {
			defer wg.Done()
			out, err := plain(context.Background(), data)
			if err != nil || out != "<p>~~Hi~~</p>\n" {
				errs <- fmt.Errorf("plain: %q %v", out, err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := disabled(context.Background(), data); !pongo.IsUnknownFilter(err) {
				errs <- fmt.Errorf("disabled: want unknown filter, got %v", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRenderer_RenderFuture(t *testing.T) {
	renderer, err := twigrender.NewRenderer(twigrender.Config{
		Views: map[string]string{"main.twig": "{{ content }}"},
	})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	value, err := renderer.RenderFuture(context.Background(), map[string]any{"content": "later"}).Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if value != "later" {
		t.Fatalf("want later, got %v", value)
	}

	if got := renderer.View(map[string]any{"view": "about"}); got != "about.twig" {
		t.Fatalf("default view from data: got %q", got)
	}
	if got := renderer.View(map[string]any{"view": 3}); got != twigrender.FallbackView {
		t.Fatalf("non-string view should fall back: got %q", got)
	}
}

func TestRenderer_Templates(t *testing.T) {
	renderer, err := twigrender.NewRenderer(twigrender.Config{
		Views:    map[string]string{"main.twig": "memory"},
		ViewsDir: []string{"testdata/views2/dir1", "testdata/views2/dir2"},
	})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	listings, err := renderer.Templates(context.Background(), "*.twig")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	want := []loader.Listing{
		{Name: "main.twig", Source: "views", Shadowed: []string{"testdata/views2/dir2"}},
		{Name: "other.twig", Source: "testdata/views2/dir1"},
	}
	if diff := cmp.Diff(want, listings); diff != "" {
		t.Fatalf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Validate(t *testing.T) {
	noop := callable.Sync(func(context.Context, ...any) (any, error) { return nil, nil })

	cases := []struct {
		name  string
		cfg   twigrender.Config
		field string
	}{
		{name: "empty view", cfg: twigrender.Config{View: twigrender.StaticView(" ")}, field: "view"},
		{name: "nil view func", cfg: twigrender.Config{View: twigrender.ViewFunc(nil)}, field: "view"},
		{name: "empty root", cfg: twigrender.Config{ViewsDir: []string{"testdata", ""}}, field: "viewsDir[1]"},
		{name: "nil fs", cfg: twigrender.Config{ViewsFS: []fs.FS{nil}}, field: "viewsFS[0]"},
		{name: "invalid function", cfg: twigrender.Config{Functions: map[string]callable.Callable{"fn": {}}}, field: "functions.fn"},
		{name: "function name", cfg: twigrender.Config{Functions: map[string]callable.Callable{"my-fn": noop}}, field: "functions.my-fn"},
		{name: "builtin filter", cfg: twigrender.Config{Filters: map[string]callable.Callable{"upper": noop}}, field: "filters.upper"},
		{name: "global name", cfg: twigrender.Config{Globals: map[string]any{"site name": 1}}, field: "globals.site name"},
		{name: "nil extension", cfg: twigrender.Config{MarkdownExtensions: []markdown.Extension{nil}}, field: "markdownExtensions[0]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := twigrender.Build(tc.cfg)
			if !errors.Is(err, twigrender.ErrInvalidConfig) {
				t.Fatalf("want invalid config, got %v", err)
			}
			var cfgErr *twigrender.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("want *ConfigError, got %T", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("field: want %q, got %q", tc.field, cfgErr.Field)
			}
		})
	}

	if err := (twigrender.Config{Filters: map[string]callable.Callable{"markdown": noop}}).Validate(); err != nil {
		t.Fatalf("user filters may replace markdown: %v", err)
	}
}

func TestBuild_ConfigureError(t *testing.T) {
	boom := errors.New("boom")
	_, err := twigrender.Build(twigrender.Config{
		Configure: func(template.Environment) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want configure error, got %v", err)
	}
}
