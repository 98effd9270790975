package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/voice-service/internal/fileutil"
	"github.com/spf13/cobra"
)

const (
	outputFilePermissions = 0o644
	defaultSpeechFile     = "speech.mp3"
	audioExtension        = ".mp3"
	logFmtWritten         = "Wrote %s (%s, %d chunks, %d chars) in %s"
	logFmtRequestFailed   = "%s request failed: %v"
)

var (
	errTextRequired = errors.New("--text is required")
	errFileOrIntro  = errors.New("either --file or --intro is required")
	errPromptEmpty  = errors.New("--prompt is required")
	errAudioInput   = errors.New("--file is already an audio file")
)

func newSynthesizeCmd(sess *session) *cobra.Command {
	var (
		req    speechRequest
		output string
	)

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Speak a short text",
		RunE: sess.withLogger(func(cmd *cobra.Command, _ []string) error {
			if req.Text == "" {
				return errTextRequired
			}

			started := time.Now()

			result, err := sess.client.synthesize(commandContext(cmd), req)
			if err != nil {
				sess.log.Error(logFmtRequestFailed, "synthesize", err)

				return err
			}

			return writeAudio(cmd, sess, output, result, started)
		}),
	}

	cmd.Flags().StringVar(&req.Text, "text", "", "Text to speak")
	cmd.Flags().StringVar(&req.LanguageCode, "language", "", "Language code, e.g. en-US or hi-IN")
	cmd.Flags().StringVar(&req.Gender, "gender", "", "Voice gender: FEMALE or MALE")
	cmd.Flags().StringVar(&req.Tone, "tone", "", "Reading style: narrative or conversational")
	cmd.Flags().StringVarP(&output, "output", "o", defaultSpeechFile, "Output audio file")

	return cmd
}

func newSynthesizeFileCmd(sess *session) *cobra.Command {
	var (
		req    documentRequest
		file   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "synthesize-file",
		Short: "Read a document aloud",
		RunE: sess.withLogger(func(cmd *cobra.Command, _ []string) error {
			if file == "" && req.IntroText == "" {
				return errFileOrIntro
			}

			if fileutil.IsAudioFile(file) {
				return fmt.Errorf("%w: %s", errAudioInput, file)
			}

			var data []byte

			if file != "" {
				var err error

				data, err = os.ReadFile(filepath.Clean(file))
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}

				if req.MimeType == "" {
					req.MimeType = fileutil.MimeTypeFor(file)
				}
			}

			if output == "" {
				output = fileutil.AudioFileName(file, audioExtension)
			}

			started := time.Now()

			result, err := sess.client.synthesizeFile(commandContext(cmd), data, req)
			if err != nil {
				sess.log.Error(logFmtRequestFailed, "synthesize-file", err)

				return err
			}

			if result.LikelyScanned {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: the document looks scanned; only its text layer was read")
			}

			return writeAudio(cmd, sess, output, result, started)
		}),
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document to read (pdf, docx, pptx, odt, doc, txt, html, image)")
	cmd.Flags().StringVar(&req.MimeType, "mime", "", "MIME type; detected from the file name when empty")
	cmd.Flags().StringVar(&req.IntroText, "intro", "", "Text read before the document")
	cmd.Flags().StringVar(&req.LanguageCode, "language", "", "Preferred language code for non-Hindi text")
	cmd.Flags().StringVar(&req.Gender, "gender", "", "Voice gender: FEMALE or MALE")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output audio file; derived from the document name when empty")

	return cmd
}

func newImageCmd(sess *session) *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate an image from a prompt and print its URL",
		RunE: sess.withLogger(func(cmd *cobra.Command, _ []string) error {
			if prompt == "" {
				return errPromptEmpty
			}

			imageURL, err := sess.client.generateImage(commandContext(cmd), prompt)
			if err != nil {
				sess.log.Error(logFmtRequestFailed, "image", err)

				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), imageURL)

			return err
		}),
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Image prompt")

	return cmd
}

func newHealthCmd(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the voice service health endpoint",
		RunE: sess.withLogger(func(cmd *cobra.Command, _ []string) error {
			status, err := sess.client.health(commandContext(cmd))
			if status != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "status: %s, synthesis: %t\n", status.Status, status.Synthesis)

				for name, result := range status.Checks {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", name, result)
				}
			}

			return err
		}),
	}
}

func writeAudio(cmd *cobra.Command, sess *session, output string, result *audioResult, started time.Time) error {
	err := fileutil.EnsureDir(filepath.Dir(output))
	if err != nil {
		return err
	}

	err = os.WriteFile(output, result.Audio, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	size := fileutil.FormatFileSize(int64(len(result.Audio)))
	elapsed := fileutil.FormatDuration(time.Since(started).Seconds())
	sess.log.Info(logFmtWritten, output, size, result.ChunkCount, result.TextLength, elapsed)

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Generated: %s (%s, %d chunks) in %s\n", output, size, result.ChunkCount, elapsed)

	return err
}
