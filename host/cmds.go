package host

import "github.com/beevik/cmd"

var cmds *cmd.Tree

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "gbasm"})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "help",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Host).cmdHelp,
	})

	// ROM commands
	rom := root.AddSubtree(cmd.TreeDescriptor{Name: "rom", Brief: "ROM image commands"})
	rom.AddCommand(cmd.CommandDescriptor{
		Name:  "build",
		Brief: "Build a ROM image from an assembly file",
		Description: "Assemble the specified file into a complete ROM" +
			" image held in memory. The image receives the standard" +
			" interrupt vectors and a cartridge header; the assembled" +
			" code is placed at 0x0150. Labels and constants defined by" +
			" the file become available to the evaluate command.",
		Usage: "rom build <filename>",
		Data:  (*Host).cmdRomBuild,
	})
	rom.AddCommand(cmd.CommandDescriptor{
		Name:  "load",
		Brief: "Load a ROM image from disk",
		Description: "Load the contents of a ROM file into memory so its" +
			" header and contents can be inspected.",
		Usage: "rom load <filename>",
		Data:  (*Host).cmdRomLoad,
	})
	rom.AddCommand(cmd.CommandDescriptor{
		Name:        "save",
		Brief:       "Save the ROM image to disk",
		Description: "Write the in-memory ROM image to a file.",
		Usage:       "rom save <filename>",
		Data:        (*Host).cmdRomSave,
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:  "header",
		Brief: "Decode the cartridge header",
		Description: "Display the cartridge header of the loaded ROM" +
			" image and verify the logo bitmap, the complement check and" +
			" the global checksum.",
		Usage: "header",
		Data:  (*Host).cmdHeader,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "symbols",
		Brief: "List bound identifiers",
		Description: "Display the labels and constants bound by the last" +
			" rom build, sorted by value. Pass 'byname' to sort by" +
			" identifier instead.",
		Usage: "symbols [byname]",
		Data:  (*Host).cmdSymbols,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "evaluate",
		Brief:       "Evaluate an expression",
		Description: "Evaluate a mathematical expression. Identifiers resolve against the symbols of the last rom build.",
		Usage:       "evaluate <expression>",
		Data:        (*Host).cmdEvaluate,
	})

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	me.AddCommand(cmd.CommandDescriptor{
		Name:  "dump",
		Brief: "Dump ROM contents at address",
		Description: "Dump the contents of the ROM image starting from the" +
			" specified linear address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		Usage: "memory dump [<address>] [<bytes>]",
		Data:  (*Host).cmdMemoryDump,
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		Usage: "set [<var> <value>]",
		Data:  (*Host).cmdSet,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        (*Host).cmdQuit,
	})

	// Add command shortcuts.
	root.AddShortcut("b", "rom build")
	root.AddShortcut("l", "rom load")
	root.AddShortcut("e", "evaluate")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("sy", "symbols")
	root.AddShortcut("?", "help")

	cmds = root
}
