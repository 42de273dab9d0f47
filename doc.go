// Command certrotor implements a TCP proxy that fronts a TLS-secured backend
// with a pool of client certificates. Certrotor accepts (insecure) connections
// through a TCP or UNIX domain socket and proxies them to the backend over
// TLS, presenting the next certificate from the pool for every forwarded
// connection in round-robin order. All listeners share a single rotation
// cursor, so the presented credential cycles globally across the process.
package main
