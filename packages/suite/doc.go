// Package suite loads contract suites from YAML files.
//
// A suite names reusable request and response specs, workflows built from
// them, and scenarios that run a workflow once per data row. Rows come from
// the file itself or from a CSV or XLSX sheet next to it:
//
//	requests:
//	  api:
//	    baseUrl: "{{baseUrl}}"
//	    contentType: application/json
//	responses:
//	  ok:
//	    preset: success
//	workflows:
//	  - name: post lifecycle
//	    request: api
//	    steps:
//	      - name: create
//	        method: POST
//	        path: /posts
//	        body: {title: "{{title}}", userId: 1}
//	        expect: {preset: created}
//	        capture: {postId: id}
//	      - name: fetch
//	        method: GET
//	        path: /posts/{{postId}}
//	        expect: ok
//	scenarios:
//	  - name: titles
//	    workflow: post lifecycle
//	    data: {csv: titles.csv}
package suite
