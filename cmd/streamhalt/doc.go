// Command streamhalt stops a multi-stream RTSP recording pipeline: it
// terminates the stream producers, waits for their provisional files to
// stabilize, finalizes and relocates the recordings into the permanent
// timestamp-partitioned hierarchy, then stops the mover and relay services
// and removes ephemeral env artifacts.
package main
