// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

// composeProjectName scopes containers, volumes, and images so stop
// cleanup never touches unrelated workloads on the same host.
const composeProjectName = "unstract"

// platformServices is the fixed service list of the stack. The
// architecture override pins every one of these to linux/amd64 on
// arm64 hosts.
var platformServices = []string{
	"db",
	"redis",
	"minio",
	"createbuckets",
	"proxy",
	"feature-flag",
	"qdrant",
	"backend",
	"worker",
	"worker-logging",
	"worker-file-processing",
	"worker-callback",
	"worker-api-deployment",
	"celery-beat",
	"platform-service",
	"prompt-service",
	"x2text-service",
	"runner",
	"frontend",
}

// frontendServices is the subset cycled by restart-frontend.
var frontendServices = []string{"frontend"}

// backendServices is the subset cycled by restart-backend: the API
// plus every Celery consumer that shares its codebase.
var backendServices = []string{
	"backend",
	"worker",
	"worker-logging",
	"worker-file-processing",
	"worker-callback",
	"worker-api-deployment",
	"celery-beat",
}

// infraImages is the fixed list of third-party images pulled up front
// so a flaky registry fails fast (and retryably) instead of midway
// through compose up.
var infraImages = []string{
	"pgvector/pgvector:pg15",
	"redis:7.2.3",
	"minio/minio:latest",
	"minio/mc:latest",
	"traefik:v2.10",
	"flipt/flipt:v1.34.0",
	"qdrant/qdrant:v1.8.3",
}
