/*
Package transport implements Skitter's remote transport (spec.md §4.5):
the C5 component that lets a node call a worker hosted on another node as
if it were local.

Skitter ships no generated protobuf stubs; instead of fabricating one, the
wire envelope is carried as a google.golang.org/protobuf/types/known/structpb.Struct
(a genuine, already-compiled proto.Message) and the single bidirectional
RPC is wired by hand as a grpc.ServiceDesc, the same shape that
protoc-gen-go-grpc would emit for one streaming method. This keeps gRPC,
protobuf and structpb honestly exercised without inventing generated code.

Connection lifecycle is join tokens over plain gRPC credentials: each
stream opens with a control envelope carrying a token that authorizes a
role (worker or master), validated before the connection is registered
with Membership; see DESIGN.md for why certificate-based mTLS isn't used
here.
*/
package transport
