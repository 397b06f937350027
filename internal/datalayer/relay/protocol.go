// Package relay carries the data layer over websockets: phone and watch each hold one
// connection to a relay Server, which routes messages and announces peers.
package relay

import (
	"time"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
)

// Envelope types.
const (
	typeWelcome          = "welcome"
	typeListNodes        = "list_nodes"
	typeNodes            = "nodes"
	typeSend             = "send"
	typeSendResult       = "send_result"
	typeMessage          = "message"
	typePutData          = "put_data"
	typePutDataResult    = "put_data_result"
	typeDataChanged      = "data_changed"
	typeNodeConnected    = "node_connected"
	typeNodeDisconnected = "node_disconnected"
)

// Envelope is the JSON frame exchanged with the relay. ID correlates a request with its result.
type Envelope struct {
	Type   string           `json:"type"`
	ID     string           `json:"id,omitempty"`
	Source string           `json:"source,omitempty"`
	Target string           `json:"target,omitempty"`
	Path   string           `json:"path,omitempty"`
	URI    string           `json:"uri,omitempty"`
	Data   []byte           `json:"data,omitempty"`
	Node   *datalayer.Node  `json:"node,omitempty"`
	Nodes  []datalayer.Node `json:"nodes,omitempty"`
	Error  string           `json:"error,omitempty"`
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Send buffer size
	sendBufferSize = 64
)
