package main

import (
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/rukai/ggbasm"
	"github.com/rukai/ggbasm/host"
)

var (
	output  string
	title   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "gbasm",
	Short:         "The ggbasm Game Boy ROM assembler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:   "build [<project dir>]",
	Short: "Assemble a project into a ROM image",
	Long: `Build assembles the project in the given directory (the current
directory by default) into a Game Boy ROM image. The project's main.asm
is placed at 0x0150, after the interrupt vectors and cartridge header.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return build(dir)
	},
}

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new gbasm project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newProject(args[0])
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive ROM workbench",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host.New().RunCommands(os.Stdin, os.Stdout, true)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&output, "output", "o", "out.gb", "filename to store the ROM in")
	buildCmd.Flags().StringVar(&title, "title", "", "cartridge title (defaults to the project name)")
	buildCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose placement and symbol output")
	rootCmd.AddCommand(buildCmd, newCmd, shellCmd)
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
}

func build(dir string) error {
	name := title
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		name = strings.ToUpper(filepath.Base(abs))
	}

	glog.V(1).Infof("building project in %s", dir)

	builder := ggbasm.NewRomBuilder()
	if verbose {
		builder.SetVerbose(os.Stderr)
	}

	if err := builder.AddBasicInterruptsAndJumps(); err != nil {
		return err
	}
	err := builder.AddHeader(ggbasm.Header{
		Title:         name,
		CartridgeType: ggbasm.RomOnly,
	})
	if err != nil {
		return err
	}
	if err := builder.AddAsmFile(filepath.Join(dir, "main.asm")); err != nil {
		return err
	}

	if verbose {
		pp.Fprintf(os.Stderr, "Symbols: %v\n", builder.Symbols())
	}

	if err := builder.WriteToDisk(output); err != nil {
		return err
	}

	glog.V(1).Infof("wrote %s", output)
	fmt.Printf("Compiled project to: %s\n", output)
	return nil
}

const mainTemplate = `; entry point
Start:
    nop
    jp Start
`

func newProject(name string) error {
	if err := os.MkdirAll(name, 0755); err != nil {
		return err
	}
	path := filepath.Join(name, "main.asm")
	if err := os.WriteFile(path, []byte(mainTemplate), 0644); err != nil {
		return err
	}
	fmt.Printf("Created new project: %s\n", name)
	return nil
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
