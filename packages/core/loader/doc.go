// Package loader turns declarative YAML suite documents into suite trees.
//
// A document declares groups, specs and hooks. Spec bodies and hooks are
// shell commands run with the document's directory as working directory.
// Placeholders of the form {{name}} are resolved through scoped variables:
// document variables, group variables, the current table row as {{row}},
// values from env_file and the process environment as {{$env.NAME}}.
//
//	description: users api
//	variables:
//	  base: http://localhost:8080
//	before_all:
//	  - ./scripts/start-server.sh
//	specs:
//	  - it: lists users
//	    run: curl -s {{base}}/users
//	    expect:
//	      - subject: json.users
//	        operator: length
//	        value: 2
//	groups:
//	  - describe: by id
//	    each: [1, 2]
//	    specs:
//	      - it: fetches
//	        run: curl -sf {{base}}/users/{{row}}
package loader
