// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics exposes the platform's prometheus instrumentation.
// Each subsystem file registers its own metrics against Registry at package
// init using promauto.With(Registry), keeping the Namespace/Subsystem
// convention consistent across components.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "vap"

// Registry is the process-wide prometheus registry. It is created here
// rather than using prometheus.DefaultRegisterer so the HTTP /metrics
// handler can render exactly this platform's series, nothing from an
// imported library's own default registration.
var Registry = prometheus.NewRegistry()
