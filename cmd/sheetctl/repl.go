package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/kalexmills/sheetlang/internal"
)

const prompt = "sheet> "

// Run drives the REPL loop over in/out until in is exhausted or a quit
// command is issued. It prints an interactive prompt when in is a terminal
// and stays silent (scriptable) otherwise, following the teacher pack's
// raw/piped input split (aretext's term.IsTerminal check in server/pty.go).
func Run(sheet *internal.Sheet, in io.Reader, out io.Writer) error {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		if interactive {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if done := dispatch(sheet, line, out); done {
			return nil
		}
	}
}

// dispatch runs one REPL command and reports whether the session should end.
func dispatch(sheet *internal.Sheet, line string, out io.Writer) bool {
	cmd, rest, _ := splitCommand(line)
	switch cmd {
	case "quit", "exit":
		return true
	case "set":
		cellStr, src, ok := splitCommand(rest)
		if !ok {
			fmt.Fprintln(out, "usage: set <cell> <source>")
			return false
		}
		changed, err := sheet.SetSource(internal.CellID(cellStr), src)
		if err != nil {
			fmt.Fprintln(out, internal.DescribeError(err))
			return false
		}
		printChanged(out, changed)
	case "get":
		printCell(sheet, internal.CellID(strings.TrimSpace(rest)), out)
	case "del":
		changed, err := sheet.Delete(internal.CellID(strings.TrimSpace(rest)))
		if err != nil {
			fmt.Fprintln(out, internal.DescribeError(err))
			return false
		}
		printChanged(out, changed)
	case "list":
		for _, id := range sheet.ListCells() {
			fmt.Fprintln(out, id)
		}
	case "load":
		if err := load(sheet, strings.TrimSpace(rest)); err != nil {
			fmt.Fprintln(out, "load:", err)
		}
	case "save":
		if err := save(sheet, strings.TrimSpace(rest)); err != nil {
			fmt.Fprintln(out, "save:", err)
		}
	case "help":
		printHelp(out)
	default:
		fmt.Fprintf(out, "unknown command %q (try 'help')\n", cmd)
	}
	return false
}

func splitCommand(line string) (head, rest string, ok bool) {
	line = strings.TrimSpace(line)
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, "", line != ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}

func printCell(sheet *internal.Sheet, id internal.CellID, out io.Writer) {
	val, err, ok := sheet.Get(id)
	if !ok {
		fmt.Fprintf(out, "%s: no such cell\n", id)
		return
	}
	if err != nil {
		fmt.Fprintf(out, "%s: %s\n", id, internal.DescribeError(err))
		return
	}
	b, jsonErr := json.Marshal(jsonValue(internal.ToJSONLike(val)))
	if jsonErr != nil {
		fmt.Fprintf(out, "%s: <unprintable: %v>\n", id, jsonErr)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", id, b)
}

func printChanged(out io.Writer, changed []internal.CellID) {
	for _, id := range changed {
		fmt.Fprintf(out, "(recomputed %s)\n", id)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  set <cell> <source>   parse and install a cell's formula")
	fmt.Fprintln(out, "  get <cell>            print a cell's last computed value")
	fmt.Fprintln(out, "  del <cell>            delete a cell")
	fmt.Fprintln(out, "  list                  list all cell ids, ascending")
	fmt.Fprintln(out, "  load <file>           load cell sources from a YAML document")
	fmt.Fprintln(out, "  save <file>           save cell sources to a YAML document")
	fmt.Fprintln(out, "  quit                  exit")
}

// jsonValue adapts internal.OrderedField slices (the engine's Record
// projection) into json.RawMessage object literals, recursing through lists
// and nested records, so every record keeps its field order when
// encoding/json marshals the result; encoding/json has no native
// ordered-map type, so this walks the structure once at the boundary
// rather than importing an ordered-map-aware JSON encoder into the core.
func jsonValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []internal.OrderedField:
		out := orderedMapSlice(val)
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = jsonValue(elem)
		}
		return out
	default:
		return val
	}
}

// orderedMapSlice renders fields as a JSON object literal, keys ascending
// (already guaranteed by internal.ToJSONLike), via json.RawMessage so
// Marshal emits them in the given order instead of encoding/json's default
// alphabetical-by-reflection behavior for map[string]any.
func orderedMapSlice(fields []internal.OrderedField) json.RawMessage {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(f.Key)
		valJSON, _ := json.Marshal(jsonValue(f.Value))
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return json.RawMessage(b.String())
}

// sheetDocument is the YAML shape that load/save round-trip: cell sources
// only, never values, per SPEC_FULL.md §6 ("load/save round-trip a sheet's
// cell sources... values are always recomputed").
type sheetDocument struct {
	Cells map[string]string `yaml:"cells"`
}

func load(sheet *internal.Sheet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc sheetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	for id, src := range doc.Cells {
		if _, err := sheet.SetSource(internal.CellID(id), src); err != nil {
			return fmt.Errorf("cell %s: %w", id, err)
		}
	}
	return nil
}

func save(sheet *internal.Sheet, path string) error {
	doc := sheetDocument{Cells: make(map[string]string)}
	for _, id := range sheet.ListCells() {
		if src, ok := sheet.Source(id); ok {
			doc.Cells[string(id)] = src
		}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
