// Package topicmgr keeps a catalogue of named topics and what they carry.
//
// A topic created with a name is described by a Descriptor: its priority,
// batch size and payload type. Descriptors are validated and registered with
// a Manager, which also counts publishes per topic so the admin surface and
// the CLI can show what exists and how busy it is.
//
// Usage:
//
//	manager := topicmgr.NewManager()
//	err := manager.Register(topicmgr.Descriptor{
//		Name:        "orders.created",
//		Description: "An order was placed",
//		Priority:    "batched",
//		BatchSize:   20,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, d := range manager.List() {
//		fmt.Println(d.Name, d.Priority)
//	}
//
// Names follow a dotted lowercase pattern (orders.created, demo.event1).
// Topics created without a name are never registered.
package topicmgr
