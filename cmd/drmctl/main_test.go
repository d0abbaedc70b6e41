package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"page-drm-service/internal/domain"
	"page-drm-service/internal/layout"
)

// run はグローバルフラグを初期化してコマンドを実行し、標準出力を返す。
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	apiURL, output, timeout = "", "text", 30*time.Second

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "drmctl version ") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	if _, err := run(t, "--output", "yaml", "version"); err == nil {
		t.Error("want error for unknown output format, got nil")
	}
}

func TestSealThenDecrypt(t *testing.T) {
	out, err := run(t, "--output", "json", "seal", "--plaintext", "tos-alisg/page-1.jpg")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	var sealed map[string]string
	if err := json.Unmarshal([]byte(out), &sealed); err != nil {
		t.Fatalf("invalid seal output %q: %v", out, err)
	}

	out, err = run(t, "decrypt", "--key", sealed["wrapped_key"], "--payload", sealed["payload"])
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if strings.TrimSpace(out) != "tos-alisg/page-1.jpg" {
		t.Errorf("want tos-alisg/page-1.jpg, got %q", out)
	}

	t.Setenv("IMAGE_BASE_URL", "https://cdn.example.com/obj/")
	out, err = run(t, "decrypt", "--resolve", "--key", sealed["wrapped_key"], "--payload", sealed["payload"])
	if err != nil {
		t.Fatalf("decrypt --resolve failed: %v", err)
	}
	if strings.TrimSpace(out) != "https://cdn.example.com/obj/tos-alisg/page-1.jpg" {
		t.Errorf("unexpected resolved URL: %q", out)
	}
}

func TestSeal_WithDataKey(t *testing.T) {
	key := strings.Repeat("A", 43) + "="
	out, err := run(t, "--output", "json", "seal", "--data-key", key, "--plaintext", "x")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	var sealed map[string]string
	if err := json.Unmarshal([]byte(out), &sealed); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if sealed["data_key"] != key {
		t.Errorf("want data key %s, got %s", key, sealed["data_key"])
	}

	if _, err := run(t, "seal", "--data-key", "QUJD", "--plaintext", "x"); err == nil {
		t.Error("want error for short data key, got nil")
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	_, err := run(t, "decrypt", "--key", "AAAA", "--payload", "AAAA")
	if err == nil {
		t.Error("want error, got nil")
	}
}

func TestLayout(t *testing.T) {
	drm := layout.EncodeRowLayout([]domain.RowBlock{{Offset: 120, Height: 80}, {Offset: 0, Height: 120}})

	out, err := run(t, "layout", "--drm", drm)
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	if !strings.Contains(out, "OFFSET") || !strings.Contains(out, "120") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = run(t, "--output", "json", "layout", "--regions", "--drm", drm)
	if err != nil {
		t.Fatalf("layout --regions failed: %v", err)
	}
	var regions []domain.Region
	if err := json.Unmarshal([]byte(out), &regions); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if len(regions) != 2 || regions[1].SY != 80 || regions[1].DY != 0 {
		t.Errorf("unexpected regions: %+v", regions)
	}

	if _, err := run(t, "layout", "--drm", "bm90YSNkcm0="); err == nil {
		t.Error("want error for bad magic, got nil")
	}
}

func TestDescramble(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 2, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			src.Set(x, y, color.Gray{Y: uint8(y * 60)})
		}
	}
	inPath := filepath.Join(dir, "in.png")
	f, err := os.Create(inPath)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	f.Close()

	drm := layout.EncodeRowLayout([]domain.RowBlock{{Offset: 2, Height: 2}, {Offset: 0, Height: 2}})
	outPath := filepath.Join(dir, "out.png")

	out, err := run(t, "descramble", "--drm", drm, "--in", inPath, "--out", outPath)
	if err != nil {
		t.Fatalf("descramble failed: %v", err)
	}
	if !strings.Contains(out, "2x4") {
		t.Errorf("unexpected output: %q", out)
	}

	rf, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output failed: %v", err)
	}
	defer rf.Close()
	dst, err := png.Decode(rf)
	if err != nil {
		t.Fatalf("decode output failed: %v", err)
	}
	// 元画像の行2が出力の行0に来る
	if got, want := color.GrayModel.Convert(dst.At(0, 0)).(color.Gray).Y, uint8(120); got != want {
		t.Errorf("want gray %d at row 0, got %d", want, got)
	}
}

func TestFormatFromPath(t *testing.T) {
	cases := map[[2]string]string{
		{"a.png", "jpeg"}:  "png",
		{"a.JPG", "png"}:   "jpeg",
		{"a.jpeg", "gif"}:  "jpeg",
		{"a.out", "jpeg"}:  "jpeg",
		{"a.GIF", "png"}:   "gif",
		{"a.out", "gif"}:   "gif",
		{"a.webp", "webp"}: "png",
	}
	for in, want := range cases {
		if got := formatFromPath(in[0], in[1]); got != want {
			t.Errorf("%v: want %s, got %s", in, want, got)
		}
	}
}

func TestPagesGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/chapters/ch-1/pages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chapter_id":"ch-1","pages":[{"index":0,"url":"https://x/a.jpg","blocks":[{"offset":0,"height":10}],"regions":[]}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "--api-url", srv.URL, "pages", "get", "--chapter", "ch-1")
	if err != nil {
		t.Fatalf("pages get failed: %v", err)
	}
	if !strings.Contains(out, "https://x/a.jpg") || !strings.Contains(out, `1 page(s) in chapter "ch-1"`) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestPagesGet_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"CHAPTER_NOT_FOUND","message":"no decoded pages for this chapter"}`))
	}))
	defer srv.Close()

	_, err := run(t, "--api-url", srv.URL, "pages", "get", "--chapter", "ch-1")
	if err == nil || !strings.Contains(err.Error(), "CHAPTER_NOT_FOUND") {
		t.Errorf("want CHAPTER_NOT_FOUND error, got %v", err)
	}
}

func TestPagesGet_RequiresAPIURL(t *testing.T) {
	t.Setenv("DRMCTL_API_URL", "")
	_, err := run(t, "pages", "get", "--chapter", "ch-1")
	if err == nil || !strings.Contains(err.Error(), "--api-url") {
		t.Errorf("want api-url error, got %v", err)
	}
}

func TestPagesGet_InvalidChapter(t *testing.T) {
	_, err := run(t, "--api-url", "http://127.0.0.1:1", "pages", "get", "--chapter", "a/b")
	if err == nil {
		t.Error("want error for invalid chapter ID, got nil")
	}
}

func TestPagesDecode(t *testing.T) {
	manifest := `{"pages":[{"order":0,"image_url":"a.jpg"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("want POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != manifest {
			t.Errorf("want manifest body, got %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"chapter_id":"ch-2","pages":[{"index":0,"url":"a.jpg","blocks":[],"regions":[]}]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := run(t, "--api-url", srv.URL, "--output", "json", "pages", "decode", "--chapter", "ch-2", "--manifest", path)
	if err != nil {
		t.Fatalf("pages decode failed: %v", err)
	}
	if !strings.Contains(out, `"chapter_id":"ch-2"`) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestMigrate(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "drm.db"))

	out, err := run(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("want pending migrations, got %q", out)
	}

	out, err = run(t, "migrate", "up")
	if err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	if !strings.Contains(out, "Applied") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = run(t, "migrate", "up")
	if err != nil {
		t.Fatalf("second migrate up failed: %v", err)
	}
	if !strings.Contains(out, "No pending migrations.") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = run(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if strings.Contains(out, "pending") {
		t.Errorf("want all applied, got %q", out)
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := run(t, "migrate", "up"); err == nil {
		t.Error("want error without DATABASE_URL, got nil")
	}
}
