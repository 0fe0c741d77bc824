// Package dispatch forwards a resolved request to its upstream service and
// streams the response back.
//
// Two forwarders share one interface. Payload-bearing requests whose raw body
// was captured upstream of the router are replayed byte for byte on a
// dedicated connection; everything else goes through the service's pooled
// reverse proxy. The Dispatcher picks one, applies the service timeout,
// updates statistics and turns upstream failures into JSON error responses.
package dispatch
