package simd

import (
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	descriptorOnce sync.Once
	descriptorErr  error
)

// resilienceFileDescriptor describes ResilienceServiceDesc as a proto file
// so reflection clients can resolve the service. Every method takes and
// returns a google.protobuf.Struct.
func resilienceFileDescriptor() *descriptorpb.FileDescriptorProto {
	const structType = ".google.protobuf.Struct"
	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String("ResilienceService")}
	for _, m := range ResilienceServiceDesc.Methods {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.MethodName),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
	}
	for _, st := range ResilienceServiceDesc.Streams {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:            proto.String(st.StreamName),
			InputType:       proto.String(structType),
			OutputType:      proto.String(structType),
			ClientStreaming: proto.Bool(st.ClientStreams),
			ServerStreaming: proto.Bool(st.ServerStreams),
		})
	}

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(ResilienceServiceDesc.Metadata.(string)),
		Package:    proto.String("resilience.v1"),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Service:    []*descriptorpb.ServiceDescriptorProto{svc},
		Syntax:     proto.String("proto3"),
	}
}

// registerResilienceDescriptor adds the run service file to the global
// registry once per process.
func registerResilienceDescriptor() error {
	descriptorOnce.Do(func() {
		fdp := resilienceFileDescriptor()
		if _, err := protoregistry.GlobalFiles.FindFileByPath(fdp.GetName()); err == nil {
			return
		}
		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			descriptorErr = err
			return
		}
		descriptorErr = protoregistry.GlobalFiles.RegisterFile(fd)
	})
	return descriptorErr
}
