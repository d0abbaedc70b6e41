package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"page-drm-service/internal/domain"
	"page-drm-service/internal/handler"
)

// pagesCmd はチャプターページAPIのコマンド群。
func pagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Decode or fetch chapter pages via the API",
	}
	cmd.AddCommand(pagesGetCmd())
	cmd.AddCommand(pagesDecodeCmd())
	return cmd
}

func pagesGetCmd() *cobra.Command {
	var chapterID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get decoded pages of a chapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.ValidateChapterID(chapterID); err != nil {
				return err
			}
			body, err := callAPI(http.MethodGet, fmt.Sprintf("/v1/chapters/%s/pages", chapterID), nil, http.StatusOK)
			if err != nil {
				return err
			}
			return printChapter(cmd, body)
		},
	}
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Chapter ID (required)")
	cmd.MarkFlagRequired("chapter")
	return cmd
}

func pagesDecodeCmd() *cobra.Command {
	var chapterID, manifestPath string
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a chapter manifest and store its pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.ValidateChapterID(chapterID); err != nil {
				return err
			}

			var manifest []byte
			var err error
			if manifestPath == "" || manifestPath == "-" {
				manifest, err = readAll(cmd.InOrStdin())
			} else {
				manifest, err = os.ReadFile(manifestPath)
			}
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}

			body, err := callAPI(http.MethodPost, fmt.Sprintf("/v1/chapters/%s/pages", chapterID), manifest, http.StatusCreated)
			if err != nil {
				return err
			}
			return printChapter(cmd, body)
		},
	}
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Chapter ID (required)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest JSON file (default: stdin)")
	cmd.MarkFlagRequired("chapter")
	return cmd
}

// printChapter はチャプターのレスポンスを出力形式に合わせて表示する。
func printChapter(cmd *cobra.Command, body []byte) error {
	out := cmd.OutOrStdout()
	if output == "json" {
		fmt.Fprintln(out, string(body))
		return nil
	}

	var resp handler.ChapterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSTRIPS\tURL")
	for _, p := range resp.Pages {
		fmt.Fprintf(w, "%d\t%d\t%s\n", p.Index, len(p.Blocks), p.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d page(s) in chapter %q\n", len(resp.Pages), resp.ChapterID)
	return nil
}

// readAll は標準入力が端末の場合はエラーとし、それ以外は全て読み込む。
func readAll(r io.Reader) ([]byte, error) {
	if f, ok := r.(*os.File); ok && f == os.Stdin {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return nil, fmt.Errorf("no manifest given: pass --manifest or pipe JSON to stdin")
		}
	}
	return io.ReadAll(r)
}
