package port

// Broadcaster queues an encoded frame for a room or for every client of a namespace.
// Both return the number of clients reached.
type Broadcaster interface {
	EmitToRoom(room string, frame []byte) int
	EmitToAll(frame []byte) int
}
