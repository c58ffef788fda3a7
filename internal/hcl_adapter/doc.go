// Package hcl_adapter loads pipeline configuration written in HCL and
// translates it into the format-agnostic config.Pipeline model.
//
// A configuration file looks like:
//
//	source {
//	  root    = "."
//	  exclude = ["target", ".git"]
//	}
//
//	build {
//	  command  = ["cargo", "build", "--release"]
//	  artifact = "target/release/bunbi-node"
//	}
//
//	chain "staging" {
//	  plain_output = "node/res/plain.json"
//	  raw_output   = "node/res/bunbi.json"
//	}
//
//	types {
//	  modules   = ["utils", "permissions", "spaces", "posts"]
//	  output    = "types.json"
//	  overrides = {
//	    Address      = "AccountId"
//	    LookupSource = "AccountId"
//	  }
//	}
//
//	release {
//	  dir = "dist"
//	}
package hcl_adapter
