package nethttp

const MIMEApplicationJSON = "application/json"
