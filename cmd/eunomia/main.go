// Command eunomia compiles Rego policy source into signed, versioned
// bundles and distributes them to a fleet of enforcement instances.
//
// Usage examples:
//
//	# Compile policies under ./policies into a bundle
//	eunomia build --dir ./policies --name users --version 1.2.0
//
//	# Validate policies without producing an artifact
//	eunomia validate --dir ./policies --require-default
//
//	# Sign a compiled bundle
//	eunomia sign ./users-1.2.0.tar.gz --key-file ./signing.key
//
//	# Push to a registry and roll it out
//	eunomia push ./users-1.2.0.tar.gz --registry https://registry.example.com
//	eunomia deploy users 1.2.0 --strategy canary:20 --instances pod-1@10.0.0.1:7000
package main

func main() {
	Execute()
}
