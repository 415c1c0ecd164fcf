// Package http exposes the housing inventory, the assignment ledger and the
// auto-assign planner over JSON.
//
// The router mounts the following endpoints:
//   - GET|POST /buildings, GET|PUT|DELETE /buildings/{buildingID}: buildings,
//     exchanging the buildingDTO payload defined in building_handler.go.
//   - GET|POST /buildings/{buildingID}/rooms, POST /buildings/{buildingID}/rooms/bulk:
//     rooms of one building and numeric-range bulk creation.
//   - GET /rooms, GET|PUT|DELETE /rooms/{roomID}, GET /rooms/{roomID}/assignments:
//     rooms with live occupancy, filtered by ?building_id= and ?available=true.
//   - POST /assignments, DELETE /assignments/{assignmentID} and
//     DELETE /assignments?room_id=&participant=: the manual assignment surface.
//     Participant references use the individual:<id> or
//     group:<id>:<gender>:<category> form.
//   - GET /participants/{ref}/assignments: every room a participant holds beds in.
//   - POST /auto-assign runs a batch synchronously; POST /auto-assign/jobs starts
//     one in the background and GET|DELETE /auto-assign/jobs/{jobID} polls or
//     cancels it.
//   - GET /inventory/summary, GET /inventory/template.xlsx,
//     GET /inventory/export.xlsx, POST /inventory/import: bed totals and the
//     workbook round trip.
//   - GET /healthz and, when a registry is configured, GET /metrics.
//
// Errors are rendered as {"error_code","message","errors"} where error_code is
// the application error kind.
package http
