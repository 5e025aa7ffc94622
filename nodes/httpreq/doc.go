// Package httpreq implements retrying HTTP request processors for the five
// common methods. An incoming event names a URL (and optionally a JSON body);
// the processor performs the request with a per-attempt timeout, retries
// transport failures with a linear delay, and emits the decoded response as a
// COMPUTATION_RESULT event.
package httpreq
