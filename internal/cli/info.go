package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InfoOptions holds flags for the info command.
type InfoOptions struct {
	*RootOptions
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Register the configured device and describe it",
		Long: `Register the configured device on a fresh framework and print its node
path, class path, device number and capacity.

Examples:
  pcd info
  pcd info --config pcd.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, opts)
		},
	}

	return cmd
}

type infoData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Node      string `json:"node"`
	ClassPath string `json:"class_path"`
	DevNum    string `json:"devnum"`
	Capacity  int64  `json:"capacity"`
}

func runInfo(cmd *cobra.Command, opts *InfoOptions) error {
	ctx := cmd.Context()
	env, err := opts.setupDevice(ctx, "")
	if err != nil {
		return err
	}
	defer env.close()

	info := env.dev.Info()
	data := infoData{
		ID:        info.ID,
		Name:      info.Name,
		Node:      info.Node,
		ClassPath: info.ClassPath,
		DevNum:    info.DevNum.String(),
		Capacity:  info.Capacity,
	}

	return opts.formatter(cmd).Emit(data, func(w io.Writer) {
		fmt.Fprintf(w, "Device:   %s\n", data.Name)
		fmt.Fprintf(w, "Node:     %s\n", data.Node)
		fmt.Fprintf(w, "Class:    %s\n", data.ClassPath)
		fmt.Fprintf(w, "Devnum:   %s\n", data.DevNum)
		fmt.Fprintf(w, "Capacity: %d bytes\n", data.Capacity)
	})
}
