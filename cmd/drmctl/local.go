package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"page-drm-service/config"
	"page-drm-service/internal/codec"
	"page-drm-service/internal/envelope"
	"page-drm-service/internal/layout"
	"page-drm-service/internal/usecase"
)

// decryptCmd はラップ済み鍵でペイロードをローカルに復号する。
func decryptCmd() *cobra.Command {
	var wrappedKey, payload string
	var resolve bool
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a payload with a wrapped key",
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := envelope.NewDefaultDecryptor().DecryptWithWrappedKey(wrappedKey, payload)
			if err != nil {
				return fmt.Errorf("decrypt: %w", err)
			}
			if resolve {
				plain = usecase.ResolveImageURL(config.Load().ImageBaseURL, plain)
			}

			if output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"plaintext": plain})
			}
			fmt.Fprintln(cmd.OutOrStdout(), plain)
			return nil
		},
	}
	cmd.Flags().StringVar(&wrappedKey, "key", "", "Wrapped data key (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "Encrypted payload (required)")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Resolve the plaintext against IMAGE_BASE_URL")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("payload")
	return cmd
}

// layoutCmd はDRMデータをデコードしてブロック一覧を表示する。
func layoutCmd() *cobra.Command {
	var drmData string
	var regions bool
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Decode a row layout descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks, err := layout.DecodeRowLayout(drmData)
			if err != nil {
				return fmt.Errorf("decode layout: %w", err)
			}

			out := cmd.OutOrStdout()
			if regions {
				rs := layout.Regions(blocks)
				if output == "json" {
					return printJSON(out, rs)
				}
				w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "SY\tDY\tHEIGHT")
				for _, r := range rs {
					fmt.Fprintf(w, "%d\t%d\t%d\n", r.SY, r.DY, r.Height)
				}
				return w.Flush()
			}

			if output == "json" {
				return printJSON(out, blocks)
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "OFFSET\tHEIGHT")
			for _, b := range blocks {
				fmt.Fprintf(w, "%d\t%d\n", b.Offset, b.Height)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&drmData, "drm", "", "DRM descriptor (required)")
	cmd.Flags().BoolVar(&regions, "regions", false, "Print copy regions instead of blocks")
	cmd.MarkFlagRequired("drm")
	return cmd
}

// descrambleCmd はスクランブルされた画像を元の順序に並べ直す。
func descrambleCmd() *cobra.Command {
	var drmData, inPath, outPath, format string
	cmd := &cobra.Command{
		Use:   "descramble",
		Short: "Reassemble a scrambled page image",
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks, err := layout.DecodeRowLayout(drmData)
			if err != nil {
				return fmt.Errorf("decode layout: %w", err)
			}

			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer in.Close()

			src, srcFormat, err := layout.DecodeImage(in)
			if err != nil {
				return err
			}
			dst, err := layout.Descramble(src, blocks)
			if err != nil {
				return err
			}

			if format == "" {
				format = formatFromPath(outPath, srcFormat)
			}
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			if err := layout.EncodeImage(out, dst, format); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("closing output: %w", err)
			}

			size := "?"
			if fi, err := os.Stat(outPath); err == nil {
				size = humanize.IBytes(uint64(fi.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d, %d strips, %s)\n", outPath, dst.Bounds().Dx(), dst.Bounds().Dy(), len(blocks), size)
			return nil
		},
	}
	cmd.Flags().StringVar(&drmData, "drm", "", "DRM descriptor (required)")
	cmd.Flags().StringVar(&inPath, "in", "", "Scrambled input image (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output image path (required)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: png, jpeg, gif (default from --out extension)")
	cmd.MarkFlagRequired("drm")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	return cmd
}

// formatFromPath は出力ファイルの拡張子から画像形式を決める。
// 判別できない場合は入力形式、それも書き出せない形式ならpngとする。
func formatFromPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	}
	if fallback == "jpeg" || fallback == "gif" {
		return fallback
	}
	return "png"
}

// sealCmd はテスト用にデータ鍵をラップし、平文を暗号化する。
func sealCmd() *cobra.Command {
	var dataKeyText, plaintext string
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Wrap a data key and encrypt a plaintext (fixture generation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var dataKey []byte
			if dataKeyText == "" {
				dataKey = make([]byte, envelope.KeySize)
				if _, err := rand.Read(dataKey); err != nil {
					return fmt.Errorf("generating data key: %w", err)
				}
			} else {
				k, err := codec.DecodeBase64(dataKeyText)
				if err != nil {
					return fmt.Errorf("--data-key: %w", err)
				}
				if len(k) != envelope.KeySize {
					return fmt.Errorf("--data-key must be %d bytes, got %d", envelope.KeySize, len(k))
				}
				dataKey = k
			}

			dec := envelope.NewDefaultDecryptor()
			wrapped, err := dec.WrapKey(dataKey)
			if err != nil {
				return fmt.Errorf("wrapping key: %w", err)
			}
			payload, err := envelope.Seal([]byte(plaintext), dataKey, dec.Shift())
			if err != nil {
				return fmt.Errorf("sealing payload: %w", err)
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				return printJSON(out, map[string]string{
					"data_key":    codec.EncodeBase64(dataKey),
					"wrapped_key": wrapped,
					"payload":     payload,
				})
			}
			fmt.Fprintf(out, "data_key:    %s\nwrapped_key: %s\npayload:     %s\n", codec.EncodeBase64(dataKey), wrapped, payload)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataKeyText, "data-key", "", "Base64 data key (random if omitted)")
	cmd.Flags().StringVar(&plaintext, "plaintext", "", "Plaintext to encrypt (required)")
	cmd.MarkFlagRequired("plaintext")
	return cmd
}
