// Package certloader implements the rotating credential supplier: a fixed
// pool of PEM certificate/key pairs with a shared atomic rotation cursor,
// loaders that parse key and certificate material fresh on each connection,
// and glue to plug the rotation into tls.Config callbacks and dialers.
package certloader
