package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/munichmade/hostsync/internal/hosts"
	"github.com/munichmade/hostsync/internal/syncer"
)

var (
	listZones      []string
	listInput      string
	listJSONOutput bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed entries in the hosts file",
	Long: `List the entries hostsync manages in the hosts file.

Without -d every managed entry is shown, whatever its zone.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringArrayVarP(&listZones, "domain", "d", nil, "Only show entries of this zone (repeatable)")
	listCmd.Flags().StringVarP(&listInput, "input", "i", "", `Hosts file to read, "-" for stdin (default from config)`)
	listCmd.Flags().BoolVar(&listJSONOutput, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// ListedEntry is one managed entry as printed by list.
type ListedEntry struct {
	Address   string   `json:"address"`
	Hostnames []string `json:"hostnames"`
	Comment   string   `json:"comment"`
}

func runList(cmd *cobra.Command, args []string) error {
	input := cfg.Hosts.Input
	if listInput != "" {
		input = listInput
	}

	text, err := syncer.ReadInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	doc, err := hosts.Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", input, err)
	}

	entries := managedEntries(doc, listZones)
	if listJSONOutput {
		return outputListJSON(cmd.OutOrStdout(), entries)
	}
	return outputListText(cmd.OutOrStdout(), entries)
}

// managedEntries returns the managed entries of zones in file order. No
// zones means every managed entry.
func managedEntries(doc *hosts.Document, zones []string) []ListedEntry {
	entries := []ListedEntry{}
	for _, l := range doc.Lines() {
		if !l.Managed() {
			continue
		}
		if len(zones) > 0 && !inAnyZone(l.Entry, zones) {
			continue
		}
		entries = append(entries, ListedEntry{
			Address:   l.Entry.Address,
			Hostnames: append([]string(nil), l.Entry.Hostnames...),
			Comment:   l.Entry.Comment,
		})
	}
	return entries
}

func inAnyZone(e *hosts.Entry, zones []string) bool {
	for _, z := range zones {
		if e.InZone(z) {
			return true
		}
	}
	return false
}

func outputListJSON(w io.Writer, entries []ListedEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func outputListText(w io.Writer, entries []ListedEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No managed entries")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tHOSTNAMES\tCOMMENT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Address, strings.Join(e.Hostnames, " "), e.Comment)
	}
	return tw.Flush()
}
