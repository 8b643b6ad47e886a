package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nfrund/serialbus/internal/topicmgr"
)

// TopicDisplay is the JSON shape of one listed topic.
type TopicDisplay struct {
	Name        string   `json:"name"`
	Priority    string   `json:"priority"`
	BatchSize   int      `json:"batch_size,omitempty"`
	Subscribers int      `json:"subscribers"`
	PayloadType string   `json:"payload_type"`
	Fields      []string `json:"payload_fields,omitempty"`
	Description string   `json:"description,omitempty"`
}

func displayTopicsTable(w io.Writer, entries []topicmgr.RegistryEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tPRIORITY\tBATCH\tSUBSCRIBERS\tPAYLOAD\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t--------\t-----\t-----------\t-------\t-----------")

	if len(entries) == 0 {
		fmt.Fprintln(tw, "No topics found")
		return
	}
	for _, e := range entries {
		batch := "-"
		if e.Descriptor.Priority == topicmgr.PriorityBatched {
			batch = fmt.Sprint(e.Descriptor.BatchSize)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Descriptor.Name,
			e.Descriptor.Priority,
			batch,
			e.Subscribers,
			e.Descriptor.PayloadType,
			truncateString(e.Descriptor.Description, 40))
	}
}

func displayTopicsJSON(w io.Writer, entries []topicmgr.RegistryEntry) error {
	displays := make([]TopicDisplay, len(entries))
	for i, e := range entries {
		displays[i] = TopicDisplay{
			Name:        e.Descriptor.Name,
			Priority:    e.Descriptor.Priority,
			Subscribers: e.Subscribers,
			PayloadType: e.Descriptor.PayloadType,
			Fields:      e.Descriptor.PayloadFields,
			Description: e.Descriptor.Description,
		}
		if e.Descriptor.Priority == topicmgr.PriorityBatched {
			displays[i].BatchSize = e.Descriptor.BatchSize
		}
	}

	output := struct {
		Topics []TopicDisplay `json:"topics"`
		Count  int            `json:"count"`
	}{displays, len(displays)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
