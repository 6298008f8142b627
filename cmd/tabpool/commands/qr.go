package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tabpool-backend/container"
	"tabpool-backend/security"
)

// NewQRCmd builds the qr command.
func NewQRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr JOB_ID",
		Short: "Show the payment request QR code of a job",
		Long: `Render the wallet payment request of an open job as a QR code in the
terminal, or write it to a PNG file with --output.

Examples:
  tabpool qr 7Xf3...
  tabpool qr 7Xf3... --output job.png`,
		Args: cobra.ExactArgs(1),
		RunE: runQR,
	}
	cmd.Flags().StringP("output", "o", "", "Write a PNG image to this path instead of the terminal")
	cmd.Flags().Bool("uri", false, "Print only the payment URI")
	return cmd
}

func runQR(cmd *cobra.Command, args []string) error {
	id, err := jobArg(args)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	uriOnly, _ := cmd.Flags().GetBool("uri")

	var path string
	if output != "" {
		if path, err = security.ResolveOutputPath(output, security.AllowedQRExtensions); err != nil {
			return err
		}
	}

	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		job, err := c.PoolService.GetJob(ctx, id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		uri, err := c.QRCodeService.PaymentURI(job)
		if err != nil {
			return err
		}
		if uriOnly {
			fmt.Fprintln(out, uri)
			return nil
		}

		if path != "" {
			png, err := c.QRCodeService.GenerateQRCode(job)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, png, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", path)
			}
			success(out, "QR code saved to %s", path)
			fmt.Fprintln(out, uri)
			return nil
		}

		art, err := c.QRCodeService.TerminalQRCode(job)
		if err != nil {
			return err
		}
		fmt.Fprint(out, art)
		fmt.Fprintln(out, uri)
		return nil
	})
}
