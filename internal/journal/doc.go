// Package journal records the frames a bridge relays between the serial
// device and the MQTT broker.
//
// Entries live in the frame_journal table of the bridge's SQLite database,
// created by the embedded migrations. The journal is append-only apart from
// Prune, which the bridge binary calls periodically to enforce retention.
package journal
