// Package stream pushes dispatch records to WebSocket clients as they happen.
//
// Each record is sent as {"event": <stage>, "data": <record>} where stage is
// rejected, dispatched or completed. Clients that cannot keep up are
// disconnected rather than slowing down the request path.
package stream
