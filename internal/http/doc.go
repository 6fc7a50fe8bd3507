// Package http exposes the booking services over HTTP/JSON using gin.
//
// Endpoints:
//   - POST /auth/login, POST /auth/logout, POST /auth/register, GET /auth/me:
//     session handling. Tokens travel in "Authorization: Bearer <token>".
//   - GET /bookings/availability?resourceId=&date=: advisory busy intervals.
//   - POST /bookings, GET /bookings, GET /bookings/:id, GET /bookings/user/:userId,
//     PUT /bookings/:id/cancel, PUT /bookings/:id/approve: the booking ledger.
//   - GET/POST /resources, GET/PUT/DELETE /resources/:id, PUT /resources/:id/status:
//     the resource catalog. Mutations are administrator only.
//   - GET /users, GET /users/:id and PUT /users/:id/{role,capabilities,deactivate,reactivate}:
//     user administration.
//   - GET /metrics and GET /healthz are unauthenticated.
//
// Every error body is {"error_code","message","errors"?,"busy_intervals"?}.
// Request and response DTOs live in dto.go.
package http
