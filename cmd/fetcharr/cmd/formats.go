package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fetcharr/fetcharr/internal/toolrunner"
	"github.com/fetcharr/fetcharr/internal/ytdlp"
)

var formatsCmd = &cobra.Command{
	Use:   "formats URL",
	Short: "List selectable stream formats for a URL",
	Long: `Formats extracts the available streams for a URL and lists the best
candidate per codec family. The printed ids feed the download command's
--video-id and --audio-id flags.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dl := cfg.Download
	dl.URL = args[0]
	if err := dl.Validate(); err != nil {
		return err
	}

	session := ytdlp.NewSession(toolrunner.NewExecRunner(), cfg.Tools, &dl, logger)
	peek, err := session.Peek(cmd.Context(), dl.URL)
	if err != nil {
		return err
	}
	if peek.Info == nil {
		return fmt.Errorf("no media found at %s", dl.URL)
	}

	video, audio := ytdlp.FilterFormats(peek.Info.Formats)
	return renderFormats(os.Stdout, peek.Info.Title, video, audio)
}

// renderFormats prints the per-family best candidates, video first.
func renderFormats(out io.Writer, title string, video, audio []ytdlp.FormatChoice) error {
	fmt.Fprintln(out, title)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tFORMAT")
	for _, c := range video {
		fmt.Fprintf(w, "Video:\t%s\t%s\n", c.FormatID, c.Label)
	}
	for _, c := range audio {
		fmt.Fprintf(w, "Audio:\t%s\t%s\n", c.FormatID, c.Label)
	}
	return w.Flush()
}
