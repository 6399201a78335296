package rpcjson

import "google.golang.org/grpc"

// CallOption forces a client call to use this codec; every rpcjson client
// stub should pass it on every invocation alongside its normal dial target.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}
